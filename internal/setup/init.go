// Package setup implements `lessons init`: it scaffolds a lesson project
// with a config file, starter lessons, and an MCP registration.
package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sgx-labs/mobilelessons/internal/cli"
	"github.com/sgx-labs/mobilelessons/internal/config"
	"github.com/sgx-labs/mobilelessons/internal/index"
)

// InitOptions controls init behavior.
type InitOptions struct {
	ProjectDir string // directory that will hold .lessons/
	ContentDir string // content root, relative to ProjectDir unless absolute
	Yes        bool   // skip all prompts, accept defaults
	NoStarter  bool   // do not write starter lessons
	NoMCP      bool   // do not register in .mcp.json
	Version    string

	In  io.Reader // prompt input, defaults to os.Stdin
	Out io.Writer // progress output, defaults to os.Stdout
}

// InitResult summarises what init did.
type InitResult struct {
	ContentRoot    string
	ConfigPath     string
	StarterWritten int
	Lessons        int
	MCPRegistered  bool
}

// RunInit scaffolds a project. An existing config file is kept.
func RunInit(opts InitOptions) (*InitResult, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	// shared by every prompt
	opts.In = bufio.NewReader(opts.In)
	if opts.ProjectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		opts.ProjectDir = cwd
	}
	if opts.ContentDir == "" {
		opts.ContentDir = config.DefaultContentDir
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	out := opts.Out
	fmt.Fprintf(out, "\n%slessons %s%s\n", cli.Bold, version, cli.Reset)

	res := &InitResult{
		ContentRoot: opts.ContentDir,
		ConfigPath:  config.ConfigFilePath(opts.ProjectDir),
	}
	if !filepath.IsAbs(res.ContentRoot) {
		res.ContentRoot = filepath.Join(opts.ProjectDir, res.ContentRoot)
	}

	// Content
	fmt.Fprintf(out, "\n  Content\n")
	if err := os.MkdirAll(res.ContentRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create content root: %w", err)
	}
	if !opts.NoStarter {
		n, err := WriteStarterLessons(res.ContentRoot)
		if err != nil {
			return nil, fmt.Errorf("write starter lessons: %w", err)
		}
		res.StarterWritten = n
		fmt.Fprintf(out, "  → %d starter lessons\n", n)
	}
	ix, err := index.Load(res.ContentRoot)
	if err != nil {
		return nil, fmt.Errorf("existing lessons do not build: %w", err)
	}
	_, res.Lessons = ix.Count()

	// Config
	fmt.Fprintf(out, "\n  Config\n")
	if _, err := os.Stat(res.ConfigPath); err == nil {
		fmt.Fprintf(out, "  → keeping %s\n", rel(opts.ProjectDir, res.ConfigPath))
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := config.GenerateConfig(opts.ProjectDir, opts.ContentDir); err != nil {
			return nil, fmt.Errorf("generate config: %w", err)
		}
		fmt.Fprintf(out, "  → %s\n", rel(opts.ProjectDir, res.ConfigPath))
	} else {
		return nil, err
	}

	handleGitignore(opts)

	// Integrations
	if !opts.NoMCP {
		fmt.Fprintf(out, "\n  Integrations\n")
		if opts.Yes || confirm(opts, "  Register the MCP server in .mcp.json?", true) {
			if err := SetupMCP(opts.ProjectDir, res.ContentRoot); err != nil {
				fmt.Fprintf(out, "  %s!%s Could not register MCP server: %v\n", cli.Yellow, cli.Reset, err)
			} else {
				res.MCPRegistered = true
				fmt.Fprintln(out, "  → .mcp.json (MCP server)")
			}
		}
	}

	fmt.Fprintf(out, "\n  %sSetup complete%s\n\n", cli.Bold, cli.Reset)
	fmt.Fprintf(out, "  Lessons:  %s\n", cli.FormatNumber(res.Lessons))
	fmt.Fprintf(out, "  Content:  %s\n\n", cli.ShortenHome(res.ContentRoot))
	fmt.Fprintf(out, "  Run '%slessons check%s' after editing, '%slessons web%s' to browse.\n\n",
		cli.Cyan, cli.Reset, cli.Cyan, cli.Reset)
	return res, nil
}

// handleGitignore adds the data directory to an existing .gitignore.
func handleGitignore(opts InitOptions) {
	gitignorePath := filepath.Join(opts.ProjectDir, ".gitignore")

	// only an existing .gitignore is updated
	data, err := os.ReadFile(gitignorePath)
	if err != nil {
		return
	}
	entry := config.DefaultDataDir + "/"
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == entry || line == config.DefaultDataDir {
			return
		}
	}

	if !opts.Yes && !confirm(opts, fmt.Sprintf("\n  Add %s to .gitignore?", entry), true) {
		return
	}
	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(opts.Out, "  %s!%s Could not update .gitignore: %v\n", cli.Yellow, cli.Reset, err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "\n# lessons search index and audit log (machine-specific)\n%s\n", entry)
	fmt.Fprintf(opts.Out, "  → Added %s to .gitignore\n", entry)
}

// confirm asks a yes/no question. defaultYes controls the default.
func confirm(opts InitOptions, question string, defaultYes bool) bool {
	hint := "[Y/n]"
	if !defaultYes {
		hint = "[y/N]"
	}
	fmt.Fprintf(opts.Out, "%s %s ", question, hint)

	r, ok := opts.In.(*bufio.Reader)
	if !ok {
		r = bufio.NewReader(opts.In)
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return defaultYes
	}
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" {
		return defaultYes
	}
	return line == "y" || line == "yes"
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return r
	}
	return path
}
