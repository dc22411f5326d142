package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gbproject/normgraph/internal/entities"
	"github.com/gbproject/normgraph/internal/ir"
)

// LoadError represents an error that occurred while reading an input.
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

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "file not found", Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Path: path}
	}
	return data, nil
}

// isYAML reports whether path names a YAML file. Stdin and every other
// extension are read as JSON first.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeDocument parses data as a JSON or YAML object.
//
// JSON goes through ir.UnmarshalValue so large integers keep full
// precision. YAML, and stdin input that is not JSON, goes through yaml.v3.
func decodeDocument(path string, data []byte) (ir.Object, error) {
	var (
		v   ir.Value
		err error
	)
	if isYAML(path) {
		v, err = decodeYAML(data)
	} else {
		v, err = ir.UnmarshalValue(data)
		if err != nil && path == "-" {
			v, err = decodeYAML(data)
		}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Path: path}
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeParseFailed,
			Message: fmt.Sprintf("document must be an object, got %s", ir.KindOf(v)),
			Path:    path,
		}
	}
	return obj, nil
}

func decodeYAML(data []byte) (ir.Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return ir.FromGo(raw)
}

// LoadDocument reads a nested document from a JSON or YAML file.
func LoadDocument(path string, stdin io.Reader) (ir.Object, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}
	return decodeDocument(path, data)
}

// LoadNormalized reads a normalized {"entities", "result"} file as written
// by the normalize command.
func LoadNormalized(path string, stdin io.Reader) (*entities.Normalized, error) {
	obj, err := LoadDocument(path, stdin)
	if err != nil {
		return nil, err
	}
	data, err := ir.MarshalValue(obj)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Path: path}
	}
	n := &entities.Normalized{}
	if err := json.Unmarshal(data, n); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Path: path}
	}
	if n.Entities == nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: `missing "entities"`, Path: path}
	}
	if n.Result == nil {
		n.Result = ir.Object{}
	}
	return n, nil
}

// writeOutput writes data to path, or to w when path is "-" or empty.
func writeOutput(path string, w io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// failLoad reports an input error through the formatter.
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message := loadErr.Message
		if loadErr.Path != "" {
			message = loadErr.Path + ": " + message
		}
		return formatter.Fail(ExitCommandError, loadErr.Code, message, nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
