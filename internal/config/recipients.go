package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileRecipients returns the recipients listed in the config file at path,
// without .env or environment overrides. A missing file lists nobody.
func FileRecipients(path string) ([]string, error) {
	f, err := openRecipients(path)
	if err != nil {
		return nil, err
	}
	return f.list(), nil
}

// AddRecipient appends addr to the recipients of the config file at path and
// returns the updated list. The file is created when missing.
func AddRecipient(path, addr string) ([]string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("invalid email address %q: %w", addr, err)
	}

	f, err := openRecipients(path)
	if err != nil {
		return nil, err
	}
	recipients := f.list()
	for _, r := range recipients {
		if strings.EqualFold(r, parsed.Address) {
			return nil, fmt.Errorf("%s is already a recipient", parsed.Address)
		}
	}
	recipients = append(recipients, parsed.Address)
	if err := f.save(recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// RemoveRecipient drops addr from the recipients of the config file at path
// and returns the updated list.
func RemoveRecipient(path, addr string) ([]string, error) {
	f, err := openRecipients(path)
	if err != nil {
		return nil, err
	}

	addr = strings.TrimSpace(addr)
	recipients := f.list()
	kept := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if !strings.EqualFold(r, addr) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipients) {
		return nil, fmt.Errorf("%s is not a recipient", addr)
	}
	if err := f.save(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// recipientsFile edits the recipient list of a config file in place, leaving
// the rest of the document as it was. The list lives under email.recipients
// when that is set, at the top level otherwise.
type recipientsFile struct {
	path string
	doc  yaml.Node
	seq  *yaml.Node
}

func openRecipients(path string) (*recipientsFile, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is not set")
	}
	f := &recipientsFile{path: path}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &f.doc); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if f.doc.Kind == 0 {
		f.doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}

	root := f.doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s is not a mapping", path)
	}
	if email := mappingValue(root, "email"); email != nil && email.Kind == yaml.MappingNode {
		if seq := mappingValue(email, "recipients"); seq != nil && len(seq.Content) > 0 {
			f.seq = seq
		}
	}
	if f.seq == nil {
		f.seq = mappingValue(root, "recipients")
	}
	if f.seq == nil {
		f.seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "recipients"}, f.seq)
	}

	// "recipients:" with nothing after it
	if f.seq.Kind == yaml.ScalarNode && f.seq.Tag == "!!null" {
		f.seq.Kind, f.seq.Tag, f.seq.Value = yaml.SequenceNode, "!!seq", ""
	}
	if f.seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("recipients in %s must be a list", path)
	}
	return f, nil
}

func (f *recipientsFile) list() []string {
	res := make([]string, 0, len(f.seq.Content))
	for _, n := range f.seq.Content {
		if v := strings.TrimSpace(n.Value); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// save writes the document back. JSON files stay JSON.
func (f *recipientsFile) save(recipients []string) error {
	f.seq.Content = f.seq.Content[:0]
	for _, r := range recipients {
		f.seq.Content = append(f.seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r})
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(f.path), ".json") {
		var v any
		if err := f.doc.Decode(&v); err != nil {
			return fmt.Errorf("failed to decode config %s: %w", f.path, err)
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = append(out, '\n')
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&f.doc); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
