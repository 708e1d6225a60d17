package config

import (
	"fmt"
	"sort"
	"strings"
)

type KeyPolicy string

const (
	// KeyPolicyPrefixed looks bot types up as "<TYPE>_BOT".
	KeyPolicyPrefixed KeyPolicy = "prefixed"
	// KeyPolicyDirect looks bot types up under the env key equal to the type.
	KeyPolicyDirect KeyPolicy = "direct"
)

const botKeySuffix = "_BOT"

func parseKeyPolicy(raw string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KeyPolicyPrefixed:
		return KeyPolicyPrefixed, nil
	case KeyPolicyDirect:
		return KeyPolicyDirect, nil
	default:
		return "", fmt.Errorf("unknown BOT_KEY_POLICY %q", raw)
	}
}

// BotTable maps bot types to backend assistant ids. It is built once and
// never mutated, so it is safe for concurrent use.
type BotTable struct {
	entries map[string]string
}

// NewBotTable snapshots env (KEY=VALUE pairs) into a table keyed by bot
// type. Under the prefixed policy every "<TYPE>_BOT" key counts, narrowed to
// allowed when it is non-empty. Under the direct policy only the keys named
// in allowed are read. Config keys and secret-looking keys are never
// entries, and neither are empty values.
func NewBotTable(policy KeyPolicy, allowed []string, env []string) BotTable {
	allow := map[string]bool{}
	for _, a := range allowed {
		if a = normalize(a); a != "" {
			allow[a] = true
		}
	}

	t := BotTable{entries: map[string]string{}}
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		botType := normalize(k)
		if policy == KeyPolicyPrefixed {
			name, ok := strings.CutSuffix(botType, botKeySuffix)
			if !ok || name == "" {
				continue
			}
			botType = name
			if len(allow) > 0 && !allow[botType] {
				continue
			}
		} else if !allow[botType] {
			continue
		}
		if isReservedKey(normalize(k)) {
			continue
		}
		t.entries[botType] = v
	}
	return t
}

// BotTableFromMap builds a table directly from bot type → assistant id.
func BotTableFromMap(policy KeyPolicy, bots map[string]string) BotTable {
	env := make([]string, 0, len(bots))
	allowed := make([]string, 0, len(bots))
	for botType, id := range bots {
		allowed = append(allowed, botType)
		key := normalize(botType)
		if policy == KeyPolicyPrefixed {
			key += botKeySuffix
		}
		env = append(env, key+"="+id)
	}
	return NewBotTable(policy, allowed, env)
}

// Lookup resolves a bot type to its assistant id.
func (t BotTable) Lookup(botType string) (string, bool) {
	id, ok := t.entries[normalize(botType)]
	return id, ok
}

// Types lists the resolvable bot types, sorted.
func (t BotTable) Types() []string {
	out := make([]string, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// secretSuffixes mark env keys that hold credentials rather than assistant
// ids.
var secretSuffixes = []string{"_KEY", "_KEY_ID", "_SECRET", "_TOKEN", "_PASSWORD", "_URL", "_DSN"}

func isReservedKey(key string) bool {
	if configKeys[key] {
		return true
	}
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func parseBotTypes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = normalize(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
