// Package launch merges rdebug's remote-attach entries into an editor
// launch configuration file (.vscode/launch.json).
package launch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/logging"
	"github.com/tailscale/hujson"
)

const (
	// Version is written to documents that have none.
	Version = "0.2.0"
	// DefaultConfigName names the remote attach configuration.
	DefaultConfigName = "rdebug: Remote Attach"
	// RemotePathInputID is the input prompting for the remote source root.
	RemotePathInputID = "rdebugRemotePath"
)

// Configuration is one entry of "configurations", keyed by Name.
type Configuration struct {
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	Request        string        `json:"request"`
	Mode           string        `json:"mode,omitempty"`
	Host           string        `json:"host,omitempty"`
	Port           int           `json:"port,omitempty"`
	SubstitutePath []PathMapping `json:"substitutePath,omitempty"`
}

// PathMapping rewrites local source paths to remote ones.
type PathMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Input is one entry of "inputs", keyed by ID.
type Input struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
}

// Result describes what a merge changed.
type Result struct {
	AddedConfigurations []string
	AddedInputs         []string
	// Created is set when no usable document existed before.
	Created bool
	// BackupPath is where a malformed file was moved, if any.
	BackupPath string
}

// Changed reports whether anything was added.
func (r Result) Changed() bool {
	return len(r.AddedConfigurations) > 0 || len(r.AddedInputs) > 0
}

// DefaultConfigurations returns the Go remote attach entry for a tunnel
// ending at localhost:localPort.
func DefaultConfigurations(localPort int) []Configuration {
	return []Configuration{{
		Name:    DefaultConfigName,
		Type:    "go",
		Request: "attach",
		Mode:    "remote",
		Host:    "localhost",
		Port:    localPort,
		SubstitutePath: []PathMapping{{
			From: "${workspaceFolder}",
			To:   "${input:" + RemotePathInputID + "}",
		}},
	}}
}

// DefaultInputs returns the prompt for the remote path printed by rdebug.
func DefaultInputs() []Input {
	return []Input{{
		ID:          RemotePathInputID,
		Type:        "promptString",
		Description: "Remote Path printed by rdebug on the compute node",
	}}
}

// document keeps existing entries as raw JSON so they are written back
// without being reinterpreted.
type document struct {
	version        json.RawMessage
	configurations []json.RawMessage
	inputs         []json.RawMessage
	other          map[string]json.RawMessage
}

// Merge adds configs and inputs whose key is not yet present to existing
// and returns the new document. A nil or blank existing starts a fresh
// document. Comments and trailing commas are accepted; a document that is
// still malformed yields a LAUNCH_CORRUPT error.
func Merge(existing []byte, configs []Configuration, inputs []Input) ([]byte, Result, error) {
	var result Result

	doc := &document{other: map[string]json.RawMessage{}}
	if len(bytes.TrimSpace(existing)) == 0 {
		result.Created = true
	} else {
		parsed, err := parse(existing)
		if err != nil {
			return nil, result, err
		}
		doc = parsed
	}

	if len(doc.version) == 0 {
		doc.version = json.RawMessage(`"` + Version + `"`)
	}

	names := keys(doc.configurations, "name")
	for _, c := range configs {
		if names[c.Name] {
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, result, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode configuration")
		}
		doc.configurations = append(doc.configurations, raw)
		names[c.Name] = true
		result.AddedConfigurations = append(result.AddedConfigurations, c.Name)
	}

	ids := keys(doc.inputs, "id")
	for _, in := range inputs {
		if ids[in.ID] {
			continue
		}
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, result, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode input")
		}
		doc.inputs = append(doc.inputs, raw)
		ids[in.ID] = true
		result.AddedInputs = append(result.AddedInputs, in.ID)
	}

	out, err := doc.encode()
	if err != nil {
		return nil, result, err
	}
	return out, result, nil
}

// MergeFile merges into the file at path, creating it and its directory
// when missing. A malformed file is renamed to path+".bak" and replaced by
// a fresh document. The file is rewritten in full.
func MergeFile(path string, configs []Configuration, inputs []Input) (Result, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to read launch file").
			WithDetail("path", path)
	}

	out, result, err := Merge(existing, configs, inputs)
	var backup string
	if errors.Is(err, errors.ErrCodeLaunchCorrupt) {
		var backupErr error
		if backup, backupErr = freeBackupPath(path); backupErr != nil {
			return Result{}, backupErr
		}
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return Result{}, errors.Wrap(renameErr, errors.ErrCodeInternal, "failed to back up launch file").
				WithDetail("path", path)
		}
		logging.NewLogger("launch").WithError(err).WithField("backup", backup).
			Warn("Launch file is malformed; starting a fresh one")
		out, result, err = Merge(nil, configs, inputs)
	}
	if err != nil {
		return Result{}, err
	}
	result.BackupPath = backup

	if !result.Changed() && !result.Created && backup == "" {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to create launch directory").
			WithDetail("path", path)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to write launch file").
			WithDetail("path", path)
	}
	return result, nil
}

// freeBackupPath returns path.bak, or path.bak.N for the first N not
// already taken, so earlier backups are never overwritten.
func freeBackupPath(path string) (string, error) {
	candidate := path + ".bak"
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to check backup path").
				WithDetail("path", candidate)
		}
		candidate = fmt.Sprintf("%s.bak.%d", path, n)
	}
}

func parse(data []byte) (*document, error) {
	standard, err := hujson.Standardize(append([]byte(nil), data...))
	if err != nil {
		return nil, errors.LaunchCorrupt("document", err)
	}

	var generic interface{}
	if err := json.Unmarshal(standard, &generic); err != nil {
		return nil, errors.LaunchCorrupt("document", err)
	}
	if err := validate(generic); err != nil {
		return nil, errors.LaunchCorrupt("document", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(standard, &top); err != nil {
		return nil, errors.LaunchCorrupt("document", err)
	}

	doc := &document{other: map[string]json.RawMessage{}}
	for key, raw := range top {
		switch key {
		case "version":
			doc.version = raw
		case "configurations":
			if err := json.Unmarshal(raw, &doc.configurations); err != nil {
				return nil, errors.LaunchCorrupt("document", err)
			}
		case "inputs":
			if err := json.Unmarshal(raw, &doc.inputs); err != nil {
				return nil, errors.LaunchCorrupt("document", err)
			}
		default:
			doc.other[key] = raw
		}
	}
	return doc, nil
}

// keys collects the string values of field across entries.
func keys(entries []json.RawMessage, field string) map[string]bool {
	seen := make(map[string]bool, len(entries))
	for _, raw := range entries {
		var entry map[string]json.RawMessage
		if json.Unmarshal(raw, &entry) != nil {
			continue
		}
		var key string
		if json.Unmarshal(entry[field], &key) == nil {
			seen[key] = true
		}
	}
	return seen
}

// encode writes version, configurations and inputs first, then any other
// top-level keys in sorted order, indented the way editors write the file.
func (d *document) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")

	fields := []struct {
		key   string
		value interface{}
	}{
		{"version", d.version},
		{"configurations", rawList(d.configurations)},
		{"inputs", rawList(d.inputs)},
	}
	other := make([]string, 0, len(d.other))
	for key := range d.other {
		other = append(other, key)
	}
	sort.Strings(other)
	for _, key := range other {
		fields = append(fields, struct {
			key   string
			value interface{}
		}{key, d.other[key]})
	}

	for i, f := range fields {
		if i > 0 {
			buf.WriteString(",")
		}
		k, _ := json.Marshal(f.key)
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to encode %q", f.key))
		}
		buf.Write(k)
		buf.WriteString(":")
		buf.Write(v)
	}
	buf.WriteString("}")

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to format launch document")
	}
	out.WriteString("\n")
	return out.Bytes(), nil
}

// rawList marshals as [] rather than null when empty.
func rawList(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
