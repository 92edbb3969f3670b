package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ChunkType classifies a chunk by the facet of project data it renders
type ChunkType string

const (
	ChunkModuleList   ChunkType = "module_list"
	ChunkStoriesList  ChunkType = "stories_list"
	ChunkFeaturesList ChunkType = "features_list"
	ChunkModuleDetail ChunkType = "module_detail"
	ChunkOverview     ChunkType = "overview"
	ChunkGlobalRules  ChunkType = "global_rules"
	ChunkTechnology   ChunkType = "technology"
	ChunkDesign       ChunkType = "design"
)

// ChunkTypes lists every type the chunker emits, in build order.
var ChunkTypes = []ChunkType{
	ChunkModuleList, ChunkStoriesList, ChunkFeaturesList, ChunkModuleDetail,
	ChunkOverview, ChunkGlobalRules, ChunkTechnology, ChunkDesign,
}

// ParseChunkType maps a name such as "module_detail" to its ChunkType.
func ParseChunkType(s string) (ChunkType, error) {
	name := ChunkType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range ChunkTypes {
		if t == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// IsRoster reports whether the chunk type is a dense listing of a whole collection.
func (t ChunkType) IsRoster() bool {
	return t == ChunkModuleList || t == ChunkStoriesList || t == ChunkFeaturesList
}

// ChunkMetadata travels with a chunk through embedding, persistence and retrieval.
type ChunkMetadata struct {
	Source     string    `json:"source"`
	Type       ChunkType `json:"type,omitempty"`
	Keywords   string    `json:"keywords,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	ModuleName string    `json:"module_name,omitempty"`
	ModuleID   string    `json:"module_id,omitempty"`
}

// Chunk is one retrievable unit of project knowledge. Chunks are not
// modified after the builder returns them.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Validate checks the invariants every built chunk must satisfy
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	if c.Metadata.Source == "" {
		return ErrMissingSource
	}
	return nil
}

// ContentHash returns the hex SHA-256 of the chunk text
func (c *Chunk) ContentHash() string {
	h := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(h[:])
}

// Preview returns at most n runes of the chunk text, with an ellipsis when cut
func (c *Chunk) Preview(n int) string {
	r := []rune(c.Text)
	if len(r) <= n {
		return c.Text
	}
	return string(r[:n]) + "..."
}
