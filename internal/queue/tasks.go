package queue

const (
	TypeUploadProcess = "upload:process"
)

type UploadProcessPayload struct {
	UploadID string `json:"upload_id"`
}
