package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/terraincognita07/stepdash/internal/docstore"
	"github.com/terraincognita07/stepdash/internal/models"
	"github.com/terraincognita07/stepdash/internal/services"
	"github.com/terraincognita07/stepdash/internal/steps"
	"gopkg.in/yaml.v3"
)

var ErrNoDocuments = errors.New("import file holds no step documents")

type UserFinder interface {
	FindByNormalizedEmail(email string) (models.User, error)
}

type ImportOptions struct {
	Users UserFinder
	Store docstore.Store
	Email string
	Path  string
	Now   func() time.Time
}

// RunImportCommand loads step documents from a JSON or YAML file into the
// store under the account identified by Email. Documents without an "id"
// get a ULID. Any "userId" in the file is replaced.
func RunImportCommand(ctx context.Context, options ImportOptions, out io.Writer) (int, error) {
	email := services.NormalizeAuthEmail(options.Email)
	if email == "" {
		return 0, fmt.Errorf("invalid email %q", options.Email)
	}
	user, err := options.Users.FindByNormalizedEmail(email)
	if err != nil {
		return 0, fmt.Errorf("find user %s: %w", email, err)
	}

	content, err := os.ReadFile(options.Path)
	if err != nil {
		return 0, fmt.Errorf("read import file: %w", err)
	}
	items, err := decodeImportFile(options.Path, content)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, ErrNoDocuments
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}
	entropy := ulid.Monotonic(rand.Reader, 0)

	imported := 0
	for index, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return imported, fmt.Errorf("document %d: expected an object, got %T", index, item)
		}

		id, err := documentID(fields, now(), entropy)
		if err != nil {
			return imported, fmt.Errorf("document %d: %w", index, err)
		}
		fields[steps.UserIDField] = user.UID

		if err := options.Store.Put(ctx, steps.CollectionName, docstore.Document{ID: id, Fields: fields}); err != nil {
			return imported, fmt.Errorf("store document %s: %w", id, err)
		}
		imported++
	}

	fmt.Fprintf(out, "Imported %d step documents for %s\n", imported, email)
	return imported, nil
}

func documentID(fields map[string]any, now time.Time, entropy io.Reader) (string, error) {
	if raw, ok := fields["id"]; ok {
		delete(fields, "id")
		if raw != nil {
			if id := strings.TrimSpace(fmt.Sprint(raw)); id != "" {
				return id, nil
			}
		}
	}

	generated, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return generated.String(), nil
}

// decodeImportFile accepts either a list of documents or an object with a
// "steps" list.
func decodeImportFile(path string, content []byte) ([]any, error) {
	var decoded any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(content))
		decoder.UseNumber()
		if err := decoder.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("parse JSON import file: %w", err)
		}
	default:
		var root yaml.Node
		if err := yaml.Unmarshal(content, &root); err != nil {
			return nil, fmt.Errorf("parse YAML import file: %w", err)
		}
		value, err := yamlValue(&root)
		if err != nil {
			return nil, fmt.Errorf("parse YAML import file: %w", err)
		}
		decoded = value
	}

	switch typed := decoded.(type) {
	case nil:
		return nil, nil
	case []any:
		return typed, nil
	case map[string]any:
		list, ok := typed[steps.CollectionName].([]any)
		if !ok {
			return nil, fmt.Errorf("import file object needs a %q list", steps.CollectionName)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported import file shape %T", decoded)
	}
}

// yamlValue converts a node tree to plain values. Timestamps become
// time.Time, which decoding into interface{} would leave as strings.
func yamlValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.SequenceNode:
		values := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := yamlValue(child)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	case yaml.MappingNode:
		values := make(map[string]any, len(node.Content)/2)
		for index := 0; index+1 < len(node.Content); index += 2 {
			value, err := yamlValue(node.Content[index+1])
			if err != nil {
				return nil, err
			}
			values[node.Content[index].Value] = value
		}
		return values, nil
	case yaml.ScalarNode:
		if node.ShortTag() == "!!timestamp" {
			var instant time.Time
			if err := node.Decode(&instant); err != nil {
				return nil, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return instant, nil
		}
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
	}
}
