package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// serverName is the key under which lessons registers in .mcp.json.
const serverName = "lessons"

type mcpConfig struct {
	Servers map[string]mcpServer `json:"mcpServers"`
}

type mcpServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// SetupMCP registers the lessons MCP server in projectDir/.mcp.json,
// preserving other servers already listed there.
func SetupMCP(projectDir, contentRoot string) error {
	mcpPath := filepath.Join(projectDir, ".mcp.json")

	var cfg mcpConfig
	if data, err := os.ReadFile(mcpPath); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse .mcp.json: %w", err)
		}
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]mcpServer)
	}

	cfg.Servers[serverName] = mcpServer{
		Command: detectBinaryPath(),
		Args:    []string{"mcp"},
		Env: map[string]string{
			"LESSONS_CONTENT_ROOT": contentRoot,
			"LESSONS_LOG_MODE":     "quiet",
		},
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(mcpPath, data, 0o644); err != nil {
		return fmt.Errorf("write .mcp.json: %w", err)
	}
	return nil
}

// RemoveMCP removes the lessons entry from .mcp.json. It reports whether an
// entry was present.
func RemoveMCP(projectDir string) (bool, error) {
	mcpPath := filepath.Join(projectDir, ".mcp.json")

	data, err := os.ReadFile(mcpPath)
	if err != nil {
		return false, fmt.Errorf("read .mcp.json: %w", err)
	}
	var cfg mcpConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Errorf("parse .mcp.json: %w", err)
	}
	if _, ok := cfg.Servers[serverName]; !ok {
		return false, nil
	}
	delete(cfg.Servers, serverName)

	data, _ = json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(mcpPath, data, 0o644); err != nil {
		return false, fmt.Errorf("write .mcp.json: %w", err)
	}
	return true, nil
}

// MCPInstalled checks if lessons is registered as an MCP server.
func MCPInstalled(projectDir string) bool {
	data, err := os.ReadFile(filepath.Join(projectDir, ".mcp.json"))
	if err != nil {
		return false
	}
	var cfg mcpConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false
	}
	_, ok := cfg.Servers[serverName]
	return ok
}

func detectBinaryPath() string {
	if p, err := exec.LookPath("lessons"); err == nil {
		return p
	}
	if exe, err := os.Executable(); err == nil && filepath.Base(exe) == "lessons" {
		return exe
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "go", "bin", "lessons"),
		"/usr/local/bin/lessons",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// resolved from PATH at launch time
	return "lessons"
}
