package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// DefaultHost is the only interface the broadcaster listens on.
const DefaultHost = "127.0.0.1"

// ErrPortFile wraps every failure to obtain a usable port from the port file.
var ErrPortFile = errors.New("invalid port file")

type portDocument struct {
	Port *int `json:"port"`
}

// ReadPortFile reads the broadcaster port from a {"port": <int>} document.
func ReadPortFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read %s: %v", ErrPortFile, path, err)
	}

	var doc portDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: failed to parse %s: %v", ErrPortFile, path, err)
	}
	if doc.Port == nil {
		return 0, fmt.Errorf("%w: %s has no port field", ErrPortFile, path)
	}
	if *doc.Port < 1 || *doc.Port > 65535 {
		return 0, fmt.Errorf("%w: port %d out of range", ErrPortFile, *doc.Port)
	}
	return *doc.Port, nil
}

// WritePortFile publishes port at path. Used by broadcasters and tests.
func WritePortFile(path string, port int) error {
	data, err := json.Marshal(map[string]int{"port": port})
	if err != nil {
		return fmt.Errorf("failed to encode port file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write port file: %w", err)
	}
	return nil
}

// ResolveAddress reads the port file and returns host:port.
// An empty host means DefaultHost.
func ResolveAddress(host, portFile string) (string, error) {
	port, err := ReadPortFile(portFile)
	if err != nil {
		return "", err
	}
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
