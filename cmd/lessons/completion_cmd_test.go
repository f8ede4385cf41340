package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompletionCmd_Bash(t *testing.T) {
	root := &cobra.Command{Use: "lessons"}
	root.AddCommand(completionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"completion", "bash"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute(): %v", err)
	}
	if !strings.Contains(out.String(), "bash completion V2 for lessons") {
		t.Fatalf("expected bash completion output, got: %q", out.String())
	}
}

func TestCompletionCmd_Unsupported(t *testing.T) {
	root := &cobra.Command{Use: "lessons"}
	root.AddCommand(completionCmd())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "tcsh"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unsupported shell")
	}
}

func TestCompleteLessonArgs(t *testing.T) {
	root := setupProject(t, sampleFiles)

	out, err := run(t, "__complete", "--content", root, "show", "")
	if err != nil {
		t.Fatalf("complete platforms: %v", err)
	}
	for _, want := range []string{"ios\tiOS", "android\tAndroid", "flutter\tFlutter"} {
		if !strings.Contains(out, want) {
			t.Errorf("platform completion missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "__complete", "--content", root, "nav", "ios", "")
	if err != nil {
		t.Fatalf("complete slugs: %v", err)
	}
	first := strings.Index(out, "getting-started\tGetting Started")
	second := strings.Index(out, "setup-dev\tSetup Dev")
	if first < 0 || second < 0 || first > second {
		t.Errorf("slug completion not in lesson order:\n%s", out)
	}

	out, err = run(t, "__complete", "--content", root, "show", "ios", "set")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "getting-started") || !strings.Contains(out, "setup-dev") {
		t.Errorf("prefix not applied:\n%s", out)
	}
}

func TestCompletePlatformFlag(t *testing.T) {
	setupProject(t, sampleFiles)
	out, err := run(t, "__complete", "search", "--platform", "fl")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "flutter\tFlutter") || strings.Contains(out, "ios\t") {
		t.Errorf("platform flag completion = %q", out)
	}
}
