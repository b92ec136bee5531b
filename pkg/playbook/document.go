package playbook

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcc/pkg/util"
)

// Terminal states a run can reconcile towards.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Envelope holds the invocation parameters that sit beside the config list.
type Envelope struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Version          string `yaml:"version"`
	Verify           bool   `yaml:"verify"`
	Debug            bool   `yaml:"debug"`
	Log              bool   `yaml:"log"`
	LogLevel         string `yaml:"log_level"`
	LogFilePath      string `yaml:"log_file_path"`
	LogAppend        bool   `yaml:"log_append"`
	APITaskTimeout   int    `yaml:"api_task_timeout"`
	TaskPollInterval int    `yaml:"task_poll_interval"`
	State            string `yaml:"state"`
	ConfigVerify     bool   `yaml:"config_verify"`
}

// EnvelopeSchema validates the top level of a playbook, minus "config".
var EnvelopeSchema = Schema{
	"host":               {Type: TypeStr, Aliases: []string{"dnac_host", "catalyst_host"}},
	"port":               {Type: TypeInt, Default: 443, Aliases: []string{"dnac_port"}},
	"username":           {Type: TypeStr, Aliases: []string{"dnac_username", "user"}},
	"password":           {Type: TypeStr, NoLog: true, Aliases: []string{"dnac_password"}},
	"version":            {Type: TypeStr, Default: "2.3.7.6", Aliases: []string{"dnac_version"}},
	"verify":             {Type: TypeBool, Default: true, Aliases: []string{"dnac_verify"}},
	"debug":              {Type: TypeBool, Default: false, Aliases: []string{"dnac_debug"}},
	"log":                {Type: TypeBool, Default: false, Aliases: []string{"dnac_log"}},
	"log_level":          {Type: TypeStr, Default: "WARNING", Upper: true, Choices: []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG"}, Aliases: []string{"dnac_log_level"}},
	"log_file_path":      {Type: TypeStr, Default: "newtcc.log", Aliases: []string{"dnac_log_file_path"}},
	"log_append":         {Type: TypeBool, Default: true, Aliases: []string{"dnac_log_append"}},
	"api_task_timeout":   {Type: TypeInt, Default: 1200, Aliases: []string{"dnac_api_task_timeout"}},
	"task_poll_interval": {Type: TypeInt, Default: 2, Aliases: []string{"dnac_task_poll_interval"}},
	"state":              {Type: TypeStr, Default: StatePresent, Choices: []string{StatePresent, StateAbsent}},
	"config_verify":      {Type: TypeBool, Default: false},
}

// Block is one entry of the config list: exactly one resource key and its
// validated value.
type Block struct {
	Key   string
	Line  int
	Value map[string]any
}

// Document is a validated playbook.
type Document struct {
	Envelope Envelope
	Blocks   []Block
}

// LogrusLevel maps the envelope's log_level onto a logrus level name.
func (e Envelope) LogrusLevel() string {
	switch e.LogLevel {
	case "CRITICAL":
		return "fatal"
	case "WARNING", "":
		return "warning"
	}
	return strings.ToLower(e.LogLevel)
}

// Load reads and validates the playbook at path. blocks maps each known
// resource key to the schema of its value.
func Load(path string, blocks map[string]Schema) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playbook: %w", err)
	}
	return Parse(data, blocks)
}

// Parse validates a playbook held in memory.
func Parse(data []byte, blocks map[string]Schema) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, util.NewValidationError(fmt.Sprintf("parsing playbook: %v", err))
	}
	node := resolveAlias(unwrapDocument(&root))
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, util.NewValidationError("playbook must be a mapping with a config list")
	}

	envNode := &yaml.Node{Kind: yaml.MappingNode, Line: node.Line}
	var configNode *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "config" {
			configNode = node.Content[i+1]
			continue
		}
		envNode.Content = append(envNode.Content, node.Content[i], node.Content[i+1])
	}

	var messages []string
	doc := &Document{}

	env, err := Validate(envNode, EnvelopeSchema)
	if err != nil {
		messages = append(messages, messagesOf(err)...)
	} else if err := Decode(env, &doc.Envelope); err != nil {
		return nil, err
	}

	doc.Blocks, err = parseBlocks(configNode, blocks, node.Line)
	if err != nil {
		messages = append(messages, messagesOf(err)...)
	}

	if len(messages) > 0 {
		return nil, &util.ValidationError{Errors: messages}
	}
	return doc, nil
}

func parseBlocks(node *yaml.Node, blocks map[string]Schema, rootLine int) ([]Block, error) {
	v := &util.ValidationBuilder{}
	node = resolveAlias(node)
	if node == nil || isNull(node) {
		return nil, v.AddErrorf("line %d: config: missing required parameter", rootLine).Build()
	}
	if node.Kind != yaml.SequenceNode {
		return nil, v.AddErrorf("line %d: config: expected a list, got %s", node.Line, kindName(node)).Build()
	}

	known := make([]string, 0, len(blocks))
	for k := range blocks {
		known = append(known, k)
	}
	sort.Strings(known)
	knownList := strings.Join(known, ", ")

	var out []Block
	for i, el := range node.Content {
		el = resolveAlias(el)
		path := fmt.Sprintf("config[%d]", i)
		if el.Kind != yaml.MappingNode || len(el.Content) != 2 {
			v.AddErrorf("line %d: %s: each block must hold exactly one of: %s", el.Line, path, knownList)
			continue
		}
		key, value := el.Content[0], el.Content[1]
		schema, ok := blocks[key.Value]
		if !ok {
			v.AddErrorf("line %d: %s.%s: unknown resource (supported: %s)", key.Line, path, key.Value, knownList)
			continue
		}
		val := &validator{v: v}
		m := val.mapping(value, schema, path+"."+key.Value)
		out = append(out, Block{Key: key.Value, Line: key.Line, Value: m})
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return out, nil
}

func messagesOf(err error) []string {
	var ve *util.ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return []string{err.Error()}
}

// Decode copies a validated mapping into a tagged struct.
func Decode(in map[string]any, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding validated block: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding validated block: %w", err)
	}
	return nil
}
