package domain

import (
	"fmt"
	"strings"
)

// Kind identifies a reviewable entity type. The set is closed.
type Kind string

const (
	KindProduct       Kind = "Product"
	KindShop          Kind = "Shop"
	KindServiceRecord Kind = "ServiceRecord"
	KindTutorial      Kind = "Tutorial"
)

// Kinds lists every reviewable kind.
var Kinds = []Kind{KindProduct, KindShop, KindServiceRecord, KindTutorial}

// ParseKind accepts the canonical name case-insensitively.
func ParseKind(raw string) (Kind, error) {
	trimmed := strings.TrimSpace(raw)
	for _, k := range Kinds {
		if strings.EqualFold(string(k), trimmed) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", raw)
}

func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Target is the polymorphic (id, type) reference a review points at.
type Target struct {
	ID   string `json:"id" bson:"id"`
	Type Kind   `json:"type" bson:"type"`
}

func (t Target) String() string {
	return string(t.Type) + ":" + t.ID
}
