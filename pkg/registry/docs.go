package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Markdown renders a reference document for every registered function,
// suitable for terminal rendering or static docs.
func (r *Registry) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# Expression functions\n")

	for _, name := range r.Names() {
		def, _ := r.Lookup(name)

		sb.WriteString(fmt.Sprintf("\n## %s\n\n", def.Name))
		if def.Help != "" {
			sb.WriteString(def.Help + "\n")
		}
		if len(def.Args) == 0 {
			continue
		}

		sb.WriteString("\n| Argument | Types | Required | Description |\n")
		sb.WriteString("|---|---|---|---|\n")

		argNames := make([]string, 0, len(def.Args))
		for argName := range def.Args {
			argNames = append(argNames, argName)
		}
		sort.Strings(argNames)

		for _, argName := range argNames {
			arg := def.Args[argName]
			required := "no"
			if arg.Required {
				required = "yes"
			}
			label := argName
			if len(arg.Aliases) > 0 {
				label += " (" + strings.Join(arg.Aliases, ", ") + ")"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				label, typeList(arg.Types), required, arg.Help))
		}
	}
	return sb.String()
}
