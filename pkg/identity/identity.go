package identity

import (
	"os"

	"github.com/benmeehan/link-failover/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the daemon's stable source identifier.
type Identity struct {
	ID   string `json:"source_id,omitempty"`
	Name string `json:"source_name,omitempty"`
}

// SourceInfoInterface defines methods for managing the source identity.
type SourceInfoInterface interface {
	LoadOrCreate() error
	GetSourceID() string
	GetIdentity() *Identity
}

// SourceInfo manages the source identity and its backing file.
type SourceInfo struct {
	IdentityFile string
	Identity     Identity
	fileOps      file.FileOperations
}

// NewSourceInfo initializes a new SourceInfo instance.
func NewSourceInfo(filePath string, fileOps file.FileOperations) *SourceInfo {
	return &SourceInfo{
		IdentityFile: filePath,
		fileOps:      fileOps,
	}
}

// LoadOrCreate reads the identity file, generating and saving a new ID when
// the file is missing or carries none.
func (s *SourceInfo) LoadOrCreate() error {
	err := s.fileOps.ReadJsonFile(s.IdentityFile, &s.Identity)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if s.Identity.ID != "" {
		return nil
	}

	s.Identity.ID = uuid.NewString()
	if s.Identity.Name == "" {
		s.Identity.Name, _ = os.Hostname()
	}
	return s.fileOps.WriteJsonFile(s.IdentityFile, s.Identity)
}

// GetIdentity returns the current Identity.
func (s *SourceInfo) GetIdentity() *Identity {
	return &s.Identity
}

// GetSourceID returns the current source ID.
func (s *SourceInfo) GetSourceID() string {
	return s.Identity.ID
}
