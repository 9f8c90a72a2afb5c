package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type fakeReader struct {
	data []byte
	err  error
}

func (f fakeReader) Read(path string, stdin io.Reader) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestRootCmdDefaultOutputIsStringSummary(t *testing.T) {
	cmd := NewRootCmd(fakeReader{data: []byte("visit https://example.com now")})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "network.url") {
		t.Fatalf("output = %q, want a network.url summary line", out.String())
	}
}

func TestRootCmdJSONFlagEmitsJSON(t *testing.T) {
	cmd := NewRootCmd(fakeReader{data: []byte("hello world")})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out.String()), "{") {
		t.Fatalf("output = %q, want a JSON object", out.String())
	}
}

func TestRootCmdReplaceFlagEmitsFlattenedBytes(t *testing.T) {
	cmd := NewRootCmd(fakeReader{data: []byte("plain text, nothing to decode")})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--replace"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "plain text, nothing to decode" {
		t.Fatalf("output = %q, want the unchanged input echoed back", out.String())
	}
}

func TestRootCmdRejectsJSONAndReplaceTogether(t *testing.T) {
	cmd := NewRootCmd(fakeReader{data: []byte("x")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--json", "--replace"})

	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected an error when --json and --replace are both set")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("error = %v, want a mutually-exclusive-flags message", err)
	}
}

func TestRootCmdPropagatesReaderError(t *testing.T) {
	cmd := NewRootCmd(fakeReader{err: io.ErrUnexpectedEOF})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error when the reader fails")
	}
}

func TestRootCmdAcceptsAtMostOneFileArg(t *testing.T) {
	cmd := NewRootCmd(fakeReader{data: []byte("x")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"one.txt", "two.txt"})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error when more than one file argument is given")
	}
}
