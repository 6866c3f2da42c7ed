package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// InstanceFileName is where running-instance metadata is recorded so a
// second invocation can discover an already-running DocsPort.
const InstanceFileName = ".docsport.json"

// Instance describes one running DocsPort process.
type Instance struct {
	Port       int    `json:"port"`
	Host       string `json:"host"`
	InstanceID string `json:"instance_id"`
	CreatedAt  string `json:"created_at"`
	LastUsed   string `json:"last_used"`
}

// IsPortFree reports whether nothing is listening on host:port.
func IsPortFree(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), time.Second)
	if err != nil {
		return true
	}
	conn.Close()
	return false
}

// FindFreePort scans [start, end] for a port with no listener.
func FindFreePort(host string, start, end int) (int, error) {
	for port := start; port <= end; port++ {
		if IsPortFree(host, port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found between %d and %d", start, end)
}

// ResolvePort picks the port the server will bind. A configured non-zero
// port is used as-is after checking it is free; port 0 triggers a range
// scan.
func (c *Config) ResolvePort() (int, error) {
	if c.Server.Port != 0 {
		if !IsPortFree(c.Server.Host, c.Server.Port) {
			return 0, fmt.Errorf("port %d is already in use", c.Server.Port)
		}
		return c.Server.Port, nil
	}
	return FindFreePort(c.Server.Host, c.Server.PortStart, c.Server.PortEnd)
}

// NewInstance builds the metadata record for a freshly resolved port.
func NewInstance(host string, port int) Instance {
	now := time.Now().Format(time.RFC3339)
	return Instance{
		Port:       port,
		Host:       host,
		InstanceID: fmt.Sprintf("docsport_%d_%d", port, time.Now().Unix()),
		CreatedAt:  now,
		LastUsed:   now,
	}
}

// WriteInstanceFile persists instance metadata as JSON.
func WriteInstanceFile(path string, inst Instance) error {
	inst.LastUsed = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadInstanceFile loads previously written instance metadata.
func ReadInstanceFile(path string) (Instance, error) {
	var inst Instance
	data, err := os.ReadFile(path)
	if err != nil {
		return inst, err
	}
	if err := json.Unmarshal(data, &inst); err != nil {
		return inst, fmt.Errorf("malformed instance file %s: %w", path, err)
	}
	return inst, nil
}
