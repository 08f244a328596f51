package entity

import (
	"fmt"
	"strings"
)

// TypeDocument is the entity type for full documents.
const TypeDocument = "document"

// dictTypePrefix namespaces dictionary entity types so that dictionaries and
// documents never collide in the same ledger.
const dictTypePrefix = "dict/"

// Key is the stable identity of an entity: (source, entity type, entity id).
// Immutable once created; all version history hangs off one key.
type Key struct {
	Source string
	Type   string
	ID     string
}

// DocumentKey builds the key for a document in the given source.
func DocumentKey(source, id string) Key {
	return Key{Source: source, Type: TypeDocument, ID: id}
}

// DictionaryKey builds the key for a dictionary entry of the given dictionary
// type (for example "status" or "doc_type").
func DictionaryKey(source, dictType, entryID string) Key {
	return Key{Source: source, Type: dictTypePrefix + dictType, ID: entryID}
}

// IsDictionary reports whether the key names a dictionary entry.
func (k Key) IsDictionary() bool {
	return strings.HasPrefix(k.Type, dictTypePrefix)
}

// DictType returns the dictionary type for dictionary keys, or "" otherwise.
func (k Key) DictType() string {
	if !k.IsDictionary() {
		return ""
	}
	return strings.TrimPrefix(k.Type, dictTypePrefix)
}

// Validate checks that all three key components are present.
func (k Key) Validate() error {
	if k.Source == "" || k.Type == "" || k.ID == "" {
		return fmt.Errorf("incomplete key %q: source, type and id are all required", k)
	}
	return nil
}

// String renders the key as source/type/id for logs and error messages.
func (k Key) String() string {
	return k.Source + "/" + k.Type + "/" + k.ID
}
