package types

// Milliseconds since the unix epoch
type UnixMilli int64

type ArchivedFile string

const (
	FilePredictions ArchivedFile = "predictions"
	FileArtifact    ArchivedFile = "submission_artifact"
)

// Who the caller was authenticated as
type PingResponse struct {
	Status    string   `json:"status"`
	Principal string   `json:"principal"`
	Roles     []string `json:"roles"`
}
