package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/flatree/pkg/model"
)

// LoadDocument reads a .yaml, .yml or .json file into a tree.
func LoadDocument(path string) (*model.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// ParseYAML builds a tree from a YAML document, keeping key order. Mapping
// keys and sequence entries become children; scalars become leaves titled
// "key: value".
func ParseYAML(data []byte) (*model.Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	tree := &model.Tree{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree, nil
	}
	top := resolveAlias(doc.Content[0])
	if top.Kind == yaml.ScalarNode {
		tree.Roots = []*model.Node{scalarNode("", top.Value)}
		return tree, nil
	}
	tree.Roots = yamlChildren(top)
	return tree, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func yamlChildren(n *yaml.Node) []*model.Node {
	var out []*model.Node
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, yamlEntry(n.Content[i].Value, resolveAlias(n.Content[i+1])))
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			out = append(out, yamlEntry(indexTitle(i), resolveAlias(c)))
		}
	}
	return out
}

func yamlEntry(title string, v *yaml.Node) *model.Node {
	switch v.Kind {
	case yaml.MappingNode:
		return &model.Node{Title: title, Kind: model.KindRecord, Children: yamlChildren(v)}
	case yaml.SequenceNode:
		return &model.Node{Title: title, Kind: model.KindGroup, Children: yamlChildren(v)}
	default:
		return scalarNode(title, v.Value)
	}
}

// ParseJSON builds a tree from a JSON document. Object keys are sorted.
func ParseJSON(data []byte) (*model.Tree, error) {
	tree := &model.Tree{}
	if len(bytes.TrimSpace(data)) == 0 {
		return tree, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	switch v.(type) {
	case map[string]any, []any:
		tree.Roots = jsonChildren(v)
	default:
		tree.Roots = []*model.Node{scalarNode("", jsonScalar(v))}
	}
	return tree, nil
}

func jsonChildren(v any) []*model.Node {
	var out []*model.Node
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, jsonEntry(k, v[k]))
		}
	case []any:
		for i, c := range v {
			out = append(out, jsonEntry(indexTitle(i), c))
		}
	}
	return out
}

func jsonEntry(title string, v any) *model.Node {
	switch v.(type) {
	case map[string]any:
		return &model.Node{Title: title, Kind: model.KindRecord, Children: jsonChildren(v)}
	case []any:
		return &model.Node{Title: title, Kind: model.KindGroup, Children: jsonChildren(v)}
	default:
		return scalarNode(title, jsonScalar(v))
	}
}

func jsonScalar(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func indexTitle(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func scalarNode(key, value string) *model.Node {
	title := value
	if key != "" {
		title = key + ": " + value
	}
	if title == "" {
		title = `""`
	}
	return &model.Node{Title: title, Kind: model.KindValue, Attrs: map[string]string{"value": value}}
}
