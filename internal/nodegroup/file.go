package nodegroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a group file. YAML is used for .yaml/.yml, INI otherwise.
// Both master and worker keys must be present. Values are host tokens
// separated by commas, whitespace or newlines (or a YAML list).
//
// INI example:
//
//	master = cp1
//	worker = """
//	node1
//	deploy@node2:2222
//	"""
func LoadFile(path string) (Mapping, error) {
	if _, err := os.Stat(path); err != nil {
		return Mapping{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read group file %s", path),
			"Check the path passed to --groups or groups_file")
	}

	var (
		raw map[string][]string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = readYAML(path)
	default:
		raw, err = readINI(path)
	}
	if err != nil {
		return Mapping{}, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Group file %s is malformed", path),
			"Use 'master = host1,host2' lines (INI) or a master:/worker: map (YAML)")
	}

	m, err := build(raw, "file "+path)
	if err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// FromConfig builds a mapping from the groups: section of .keyfleet.yaml.
func FromConfig(groups map[string][]string) (Mapping, error) {
	raw := make(map[string][]string, len(groups))
	for name, tokens := range groups {
		var hosts []string
		for _, t := range tokens {
			hosts = append(hosts, splitHosts(t)...)
		}
		raw[strings.ToLower(name)] = hosts
	}
	return build(raw, "config")
}

// build validates required keys and parses every host token.
func build(raw map[string][]string, source string) (Mapping, error) {
	for _, key := range []string{GroupMaster, GroupWorker} {
		if _, ok := raw[key]; !ok {
			return Mapping{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Group definitions from %s are missing the %q key", source, key),
				"Define both master and worker groups")
		}
	}

	master, err := parseGroup(GroupMaster, raw[GroupMaster], source)
	if err != nil {
		return Mapping{}, err
	}
	worker, err := parseGroup(GroupWorker, raw[GroupWorker], source)
	if err != nil {
		return Mapping{}, err
	}

	return Mapping{Master: master, Worker: worker, Source: source}, nil
}

func parseGroup(name string, tokens []string, source string) (Group, error) {
	hosts := make([]Host, 0, len(tokens))
	for _, tok := range tokens {
		h, err := ParseHost(tok)
		if err != nil {
			return Group{}, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Bad host %q in group %s from %s", tok, name, source),
				"Use host, user@host or host:port")
		}
		hosts = append(hosts, h)
	}
	return NewGroup(name, hosts), nil
}

// readINI reads keys from a [groups] section when present, else from the
// top of the file.
func readINI(path string) (map[string][]string, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:                true,
		AllowPythonMultilineValues: true,
	}, path)
	if err != nil {
		return nil, err
	}

	section := f.Section(ini.DefaultSection)
	if s, err := f.GetSection("groups"); err == nil {
		section = s
	}

	raw := make(map[string][]string)
	for _, key := range section.Keys() {
		raw[strings.ToLower(key.Name())] = splitHosts(key.Value())
	}
	return raw, nil
}

func readYAML(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if nested, ok := doc["groups"].(map[string]interface{}); ok {
		doc = nested
	}

	raw := make(map[string][]string, len(doc))
	for name, v := range doc {
		hosts, err := yamlHosts(v)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}
		raw[strings.ToLower(name)] = hosts
	}
	return raw, nil
}

func yamlHosts(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		return splitHosts(val), nil
	case []interface{}:
		var out []string
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %v is not a string", item)
			}
			out = append(out, splitHosts(s)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list or string, got %T", v)
	}
}

// splitHosts splits a host list on commas, semicolons and whitespace.
func splitHosts(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if fields == nil {
		return []string{}
	}
	return fields
}
