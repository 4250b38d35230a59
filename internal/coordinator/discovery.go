package coordinator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"zbridge/internal/config"
	"zbridge/internal/fileutil"
	"zbridge/internal/metacodec"
)

// EnvAddress overrides endpoint discovery with a fixed host:port.
const EnvAddress = "ZBRIDGE_COORDINATOR_ADDR"

// Endpoint is the discovery record a running server publishes.
type Endpoint struct {
	Address   string    `json:"address" yaml:"address"`
	PID       int       `json:"pid" yaml:"pid"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

func writeEndpoint(path string, ep Endpoint) error {
	data, err := metacodec.MarshalIndent(ep)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o600)
}

// ReadEndpoint loads the discovery record at path.
func ReadEndpoint(path string) (Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Endpoint{}, err
	}
	var ep Endpoint
	if err := metacodec.Decode(data, &ep); err != nil {
		return Endpoint{}, err
	}
	if strings.TrimSpace(ep.Address) == "" {
		return Endpoint{}, fmt.Errorf("%s: empty address", path)
	}
	return ep, nil
}

// ResolveAddress returns the address clients should dial. The environment
// override wins; otherwise the discovery file is read. No running server
// yields fs.ErrNotExist.
func ResolveAddress(cfg *config.Config) (string, error) {
	if addr := strings.TrimSpace(os.Getenv(EnvAddress)); addr != "" {
		return addr, nil
	}
	ep, err := ReadEndpoint(cfg.CoordinatorAddressPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fs.ErrNotExist
		}
		return "", err
	}
	return ep.Address, nil
}
