package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/querysql"
	"github.com/roach88/docql/internal/schema"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No query files found
	ErrCodeParseFailed = "E004" // Query or options document malformed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSchema      = "E006" // Schema file invalid
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database error

	// Translation errors, one per querysql.ErrorKind
	ErrCodeOperatorCombination = "E101"
	ErrCodeFieldPath           = "E102"
	ErrCodeInvalidCursor       = "E103"
	ErrCodeSortWithCursor      = "E104"
	ErrCodeInvalidOperand      = "E105"
	ErrCodeInvalidQuery        = "E106"
)

// MapTranslateErrorCode maps a translation error to its CLI code.
func MapTranslateErrorCode(err error) string {
	var te *querysql.TranslateError
	if !errors.As(err, &te) {
		return ErrCodeGeneric
	}
	switch te.Kind {
	case querysql.UnknownOperatorCombination:
		return ErrCodeOperatorCombination
	case querysql.MalformedFieldPath:
		return ErrCodeFieldPath
	case querysql.InvalidCursor:
		return ErrCodeInvalidCursor
	case querysql.EmptySortWithCursor:
		return ErrCodeSortWithCursor
	case querysql.InvalidOperand:
		return ErrCodeInvalidOperand
	default:
		return ErrCodeInvalidQuery
	}
}

// LoadError represents an error that occurred while loading an input file.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadErrorParts returns the code and message of err for output.
func loadErrorParts(err error) (string, string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	if querysql.IsTranslateError(err) {
		return MapTranslateErrorCode(err), err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

// LoadSchema reads a schema file (.yaml, .yml, .json or .cue). An empty
// path yields a schema with no declared fields.
func LoadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.New(nil, nil)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %v", err), Path: path}
	}
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error(), Path: path}
	}
	return s, nil
}

// QueryFile is one parsed query document.
type QueryFile struct {
	Path    string
	Query   query.Query
	Options query.Options
}

// ParseQueryDocument decodes YAML or JSON. A document whose only keys are
// "query" and "options" carries both; any other document is a bare query.
func ParseQueryDocument(r io.Reader) (query.Query, query.Options, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, query.Options{}, fmt.Errorf("decode: %w", err)
	}
	if doc == nil {
		return query.Empty{}, query.Options{}, nil
	}

	qdoc, optsDoc := doc, map[string]any(nil)
	if isWrapped(doc) {
		var ok bool
		if qdoc, ok = asObject(doc["query"]); !ok {
			return nil, query.Options{}, fmt.Errorf("query: expected an object")
		}
		if raw, present := doc["options"]; present {
			if optsDoc, ok = asObject(raw); !ok {
				return nil, query.Options{}, fmt.Errorf("options: expected an object")
			}
		}
	}

	q, err := query.Parse(qdoc)
	if err != nil {
		return nil, query.Options{}, err
	}
	var opts query.Options
	if optsDoc != nil {
		if opts, err = query.ParseOptions(optsDoc); err != nil {
			return nil, query.Options{}, err
		}
	}
	return q, opts, nil
}

func isWrapped(doc map[string]any) bool {
	if _, ok := doc["query"]; !ok {
		return false
	}
	for k := range doc {
		if k != "query" && k != "options" {
			return false
		}
	}
	return true
}

// asObject accepts a nil value as an empty object.
func asObject(v any) (map[string]any, bool) {
	if v == nil {
		return map[string]any{}, true
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// LoadQueryFile reads and parses one query file.
func LoadQueryFile(path string) (*QueryFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Path: path}
	}
	defer f.Close()

	q, opts, err := ParseQueryDocument(f)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Path: path}
	}
	return &QueryFile{Path: path, Query: q, Options: opts}, nil
}

var queryExtensions = []string{".yaml", ".yml", ".json"}

// FindQueryFiles expands the arguments: files are kept as given,
// directories contribute their query files in lexical order.
func FindQueryFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", arg)}
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(queryExtensions, strings.ToLower(filepath.Ext(path))) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no query files found"}
	}
	return files, nil
}
