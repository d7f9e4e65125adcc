// Package graph translates parsed log events into a typed, deduplicated
// entity-relationship graph of actors and assets. The output is a plain
// abstract graph (adjacency plus attributes); layout and rendering belong to
// external collaborators.
package graph

import (
	"strings"
)

// EntityType classifies a graph node. The set is closed: extraction rules
// only ever produce these types.
type EntityType string

const (
	EntityProcess  EntityType = "process"
	EntityFile     EntityType = "file"
	EntityHost     EntityType = "host"
	EntityUser     EntityType = "user"
	EntityIP       EntityType = "ip"
	EntityService  EntityType = "service"
	EntityRegistry EntityType = "registry"
	EntityDriver   EntityType = "driver"
	EntityHash     EntityType = "hash"
	EntityAPICall  EntityType = "api_call"
	EntityResource EntityType = "resource"
	EntityDNS      EntityType = "dns"
)

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// IsValid checks if the EntityType is a valid value.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityProcess, EntityFile, EntityHost, EntityUser, EntityIP,
		EntityService, EntityRegistry, EntityDriver, EntityHash,
		EntityAPICall, EntityResource, EntityDNS:
		return true
	default:
		return false
	}
}

// Relation classifies an edge. Relations capture the semantic connection
// between two entities observed in one event.
type Relation string

const (
	RelationProcessCreation    Relation = "process_creation"
	RelationExecution          Relation = "execution"
	RelationHostActivity       Relation = "host_activity"
	RelationNetwork            Relation = "network"
	RelationDriverLoad         Relation = "driver_load"
	RelationImageLoad          Relation = "image_load"
	RelationProcessInteraction Relation = "process_interaction"
	RelationFileCreation       Relation = "file_creation"
	RelationRegistry           Relation = "registry"
	RelationDNS                Relation = "dns"
	RelationServiceInstall     Relation = "service_install"
	RelationServiceBinary      Relation = "service_binary"
	RelationAuthentication     Relation = "authentication"
	RelationScriptExecution    Relation = "script_execution"
	RelationUserActivity       Relation = "user_activity"
	RelationActivity           Relation = "activity"
	RelationAPICall            Relation = "api_call"
	RelationSource             Relation = "source"
	RelationTarget             Relation = "target"
	RelationHTTPRequest        Relation = "http_request"
	RelationServer             Relation = "server"
	RelationUserSource         Relation = "user_source"
)

// sentinel values that never become nodes.
const notTranslated = "NOT_TRANSLATED"

// Node is one entity in the graph. Identity is (type, normalized value):
// values differing only by case, surrounding whitespace, or doubled path
// separators collapse onto the same node.
type Node struct {
	ID    string
	Type  EntityType
	Label string
	Value string
	Count int
}

// NewNode synthesizes a node for a raw value, or returns nil for empty and
// sentinel values.
func NewNode(entityType EntityType, value string) *Node {
	return NewNodeLabeled(entityType, value, "")
}

// NewNodeLabeled is NewNode with an explicit display label overriding the
// derived short label.
func NewNodeLabeled(entityType EntityType, value, label string) *Node {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "-" || trimmed == notTranslated {
		return nil
	}
	if label == "" {
		label = shortLabel(trimmed, entityType)
	}
	return &Node{
		ID:    string(entityType) + "::" + normalizeValue(trimmed),
		Type:  entityType,
		Label: label,
		Value: trimmed,
		Count: 1,
	}
}

// normalizeValue makes representationally-equal values collapse to one node
// id: trim, case-fold, collapse doubled backslashes.
func normalizeValue(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(v, `\\`, `\`)
}

// shortLabel derives a compact display label: the basename for path-like
// entities, a 50-character ellipsis cut otherwise.
func shortLabel(value string, entityType EntityType) string {
	switch entityType {
	case EntityProcess, EntityFile, EntityDriver:
		name := pathBase(value)
		if name != "" {
			return name
		}
		if len(value) > 40 {
			return value[:40]
		}
		return value
	}
	if len(value) > 50 {
		return value[:47] + "..."
	}
	return value
}

// pathBase returns the final component of a path using either separator
// style, since log values mix windows and unix paths.
func pathBase(value string) string {
	v := strings.TrimRight(strings.TrimSpace(value), `\/`)
	if idx := strings.LastIndexAny(v, `\/`); idx >= 0 {
		return v[idx+1:]
	}
	return v
}

// Edge is a directed connection between two nodes. Identity is (src, dst):
// repeat observations increment Weight, never duplicate.
type Edge struct {
	Src      string
	Dst      string
	Label    string
	Relation Relation
	Weight   int
}

// NewEdge creates an edge between two nodes, or returns nil when either
// endpoint is missing so callers can connect optional nodes unconditionally.
func NewEdge(src, dst *Node, label string, relation Relation) *Edge {
	if src == nil || dst == nil {
		return nil
	}
	return &Edge{
		Src:      src.ID,
		Dst:      dst.ID,
		Label:    label,
		Relation: relation,
		Weight:   1,
	}
}
