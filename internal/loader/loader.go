// Package loader reads head documents: YAML, JSON or CUE files describing one
// or more entries to push into a Head.
//
// A document is either a bare entry input
//
//	title: About
//	meta:
//	  - name: description
//	    content: About us
//
// or a wrapper with per-entry options and shared template params
//
//	params: {siteName: Acme}
//	entries:
//	  - input: {titleTemplate: "%s %separator %siteName"}
//	  - input: {title: About}
//	    mode: server
//
// Every format is converted to JSON and validated against the embedded head
// document schema before it becomes ir values.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

//go:embed head.schema.json
var schemaJSON []byte

const schemaURL = "head.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func headSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal head schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add head schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFor maps a file extension to its format.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".cue":
		return FormatCUE, true
	default:
		return "", false
	}
}

// Entry is one entry to push.
type Entry struct {
	Input   ir.Object
	Options entry.Options
}

// Document is a loaded head document.
type Document struct {
	Path    string
	Entries []Entry
}

// Pusher accepts entries. *engine.Head satisfies it.
type Pusher interface {
	Push(input ir.Object, opts entry.Options) *entry.Handle
}

// Push pushes every entry of d in order and returns their handles.
func (d *Document) Push(p Pusher) []*entry.Handle {
	handles := make([]*entry.Handle, 0, len(d.Entries))
	for _, e := range d.Entries {
		handles = append(handles, p.Push(e.Input.Clone(), e.Options))
	}
	return handles
}

// Load reads and parses one document, choosing the format by extension.
func Load(path string) (*Document, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, &LoadError{Code: ErrCodeUnsupported, Path: path, Message: "unsupported document extension " + filepath.Ext(path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		code := ErrCodeGeneric
		if os.IsNotExist(err) {
			code = ErrCodeNotFound
		}
		return nil, &LoadError{Code: code, Path: path, Message: "read document", Err: err}
	}
	return Parse(data, format, path)
}

// LoadAll loads every path in order. A directory contributes every document
// below it, in lexical order.
func LoadAll(paths []string) ([]*Document, error) {
	var docs []*Document
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "stat document", Err: err}
		}
		files := []string{p}
		if info.IsDir() {
			if files, err = Find(p); err != nil {
				return nil, err
			}
		}
		for _, f := range files {
			doc, err := Load(f)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Find returns every document file below dir in lexical order.
func Find(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := FormatFor(path); ok && !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Path: dir, Message: "scan directory", Err: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Path: dir, Message: "no head documents found"}
	}
	return files, nil
}

// Parse decodes data in the given format, validates it and converts it.
// name labels errors.
func Parse(data []byte, format Format, name string) (*Document, error) {
	raw, err := toJSON(data, format, name)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: name, Message: fmt.Sprintf("parse %s", format), Err: err}
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: name, Message: "decode document", Err: err}
	}
	sch, err := headSchema()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Path: name, Message: "compile head schema", Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Path: name, Message: "document does not match the head schema", Err: err}
	}

	v, err := ir.FromGo(inst)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Path: name, Message: "convert document", Err: err}
	}
	obj, _ := v.(ir.Object)

	doc := &Document{Path: name}
	entries, wrapped := obj["entries"].(ir.Array)
	if !wrapped {
		doc.Entries = []Entry{{Input: obj, Options: entry.Options{Mode: ir.ModeAll}}}
		return doc, nil
	}

	if params, ok := obj["params"].(ir.Object); ok && len(params) > 0 {
		doc.Entries = append(doc.Entries, Entry{
			Input:   ir.Object{"templateParams": params},
			Options: entry.Options{Mode: ir.ModeAll},
		})
	}
	for i, ev := range entries {
		e, err := parseEntry(ev.(ir.Object))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeEntry, Path: name, Message: fmt.Sprintf("entries[%d]", i), Err: err}
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, nil
}

func parseEntry(obj ir.Object) (Entry, error) {
	input, _ := obj["input"].(ir.Object)
	e := Entry{Input: input}

	var err error
	mode, _ := obj["mode"].(ir.String)
	if e.Options.Mode, err = ir.ParseMode(string(mode)); err != nil {
		return Entry{}, err
	}
	pos, _ := obj["tagPosition"].(ir.String)
	if e.Options.TagPosition, err = ir.ParseTagPosition(string(pos)); err != nil {
		return Entry{}, err
	}
	if e.Options.TagPriority, err = ir.PriorityFromValue(obj["tagPriority"]); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// toJSON re-encodes a document as JSON so that every format is validated and
// converted the same way.
func toJSON(data []byte, format Format, name string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		if v == nil {
			v = map[string]any{}
		}
		return json.Marshal(v)
	case FormatCUE:
		ctx := cuecontext.New()
		value := ctx.CompileBytes(data, cue.Filename(name))
		if err := value.Err(); err != nil {
			return nil, err
		}
		if err := value.Validate(cue.Concrete(true)); err != nil {
			return nil, err
		}
		return value.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
