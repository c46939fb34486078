package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile 从 YAML 文件加载规则目录。
// 文件中的顺序即定义顺序，同优先级冲突时按它决定胜者。
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 格式的规则目录并校验每条规则。
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("parse rules: no rules defined")
	}

	for i, r := range f.Rules {
		if r.Trigger == "" {
			return nil, fmt.Errorf("rule %d: trigger required", i)
		}
		if !r.Priority.Valid() {
			return nil, fmt.Errorf("rule %d (%s): unknown priority %q", i, r.Trigger, r.Priority)
		}
		if r.Group == "" {
			f.Rules[i].Group = GroupNeutral
		} else if !r.Group.valid() {
			return nil, fmt.Errorf("rule %d (%s): unknown group %q", i, r.Trigger, r.Group)
		}
	}

	return NewCatalog(f.Rules), nil
}
