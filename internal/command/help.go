package command

import (
	"sort"
	"strings"
)

// helpText renders plain-text help for the root or for the node at path.
func (m *Manager) helpText(path []string) string {
	m.mu.RLock()
	root := m.root
	alias := m.alias
	m.mu.RUnlock()

	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.ToLower(strings.TrimPrefix(p, "/"))
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok2 := alias[p]; ok2 && leaf != nil && leaf.cmd != nil {
				cur = leaf
				full = splitRoute(leaf.cmd.Route)
				break
			}
			return "unknown command. try /help"
		}
		cur = n
		full = append(full, p)
	}
	if len(full) == 0 {
		return helpTop(root)
	}
	return helpNode(cur, full)
}

type topRow struct {
	name string
	desc string
	lock bool
}

func helpTop(root *cmdNode) string {
	names := root.childNames()
	rows := make([]topRow, 0, len(names))
	for _, name := range names {
		n, _ := root.child(name)
		if n == nil {
			continue
		}
		rows = append(rows, topRow{name: name, desc: summarizeNodeDesc(n), lock: nodeIsOwnerOnly(n)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	var b strings.Builder
	b.WriteString("Commands (try /help <cmd>):\n")
	for _, r := range rows {
		b.WriteString("  /")
		b.WriteString(r.name)
		if r.desc != "" {
			b.WriteString(" - ")
			b.WriteString(r.desc)
		}
		if r.lock {
			b.WriteString(" (owner)")
		}
		b.WriteByte('\n')
	}
	b.WriteString("Anything else is read as a spoken request, e.g. \"call mom at 9 pm\".")
	return b.String()
}

func helpNode(n *cmdNode, full []string) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(strings.Join(full, " "))
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			b.WriteString(" - ")
			b.WriteString(d)
		}
		if u := strings.TrimSpace(n.cmd.Usage); u != "" {
			b.WriteString("\nusage: ")
			b.WriteString(u)
		}
		if len(n.cmd.Aliases) > 0 {
			b.WriteString("\naliases: /")
			b.WriteString(strings.Join(n.cmd.Aliases, ", /"))
		}
	}
	if subs := n.childNames(); len(subs) > 0 {
		b.WriteString("\nsubcommands:")
		for _, s := range subs {
			c, _ := n.child(s)
			b.WriteString("\n  ")
			b.WriteString(s)
			if c != nil && c.cmd != nil && c.cmd.Description != "" {
				b.WriteString(" - ")
				b.WriteString(c.cmd.Description)
			}
		}
	}
	return b.String()
}

func summarizeNodeDesc(n *cmdNode) string {
	if n.cmd != nil && strings.TrimSpace(n.cmd.Description) != "" {
		return strings.TrimSpace(n.cmd.Description)
	}
	if subs := n.childNames(); len(subs) > 0 {
		return strings.Join(subs, ", ")
	}
	return ""
}

// nodeIsOwnerOnly reports whether every command under n is owner-only.
func nodeIsOwnerOnly(n *cmdNode) bool {
	seen := false
	var walk func(*cmdNode) bool
	walk = func(c *cmdNode) bool {
		if c.cmd != nil {
			seen = true
			if c.cmd.Access != AccessOwnerOnly {
				return false
			}
		}
		for _, name := range c.childNames() {
			ch, _ := c.child(name)
			if ch != nil && !walk(ch) {
				return false
			}
		}
		return true
	}
	return walk(n) && seen
}
