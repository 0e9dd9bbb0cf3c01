package normalize

import "strings"

// Role tags what a table column holds.
type Role string

const (
	RoleName        Role = "name"
	RoleBits        Role = "bits"
	RoleStart       Role = "start"
	RoleEnd         Role = "end"
	RoleLength      Role = "length"
	RoleWord        Role = "word"
	RoleUnits       Role = "units"
	RoleResolution  Role = "resolution"
	RoleDescription Role = "description"
	RoleUnknown     Role = "unrecognized"
)

// roleAliases maps lowercase header spellings to roles. Longer aliases
// are checked first so "bit start" resolves to start, not bits.
var roleAliases = []struct {
	alias string
	role  Role
}{
	{"field name", RoleName},
	{"data element", RoleName},
	{"element name", RoleName},
	{"designator", RoleName},
	{"欄位名稱", RoleName},
	{"名稱", RoleName},

	{"start bit", RoleStart},
	{"bit start", RoleStart},
	{"first bit", RoleStart},
	{"起始位元", RoleStart},
	{"起始", RoleStart},

	{"end bit", RoleEnd},
	{"bit end", RoleEnd},
	{"last bit", RoleEnd},
	{"結束位元", RoleEnd},
	{"結束", RoleEnd},

	{"no. of bits", RoleLength},
	{"number of bits", RoleLength},
	{"bit length", RoleLength},
	{"length", RoleLength},
	{"len", RoleLength},
	{"長度", RoleLength},

	{"bit range", RoleBits},
	{"bit no", RoleBits},
	{"bit position", RoleBits},
	{"bits", RoleBits},
	{"bit", RoleBits},
	{"位元", RoleBits},

	{"word no", RoleWord},
	{"word number", RoleWord},
	{"word", RoleWord},
	{"字組", RoleWord},

	{"resolution", RoleResolution},
	{"scale", RoleResolution},
	{"解析度", RoleResolution},

	{"units", RoleUnits},
	{"unit", RoleUnits},
	{"單位", RoleUnits},

	{"description", RoleDescription},
	{"remarks", RoleDescription},
	{"definition", RoleDescription},
	{"meaning", RoleDescription},
	{"comment", RoleDescription},
	{"說明", RoleDescription},
	{"備註", RoleDescription},

	{"name", RoleName},
	{"field", RoleName},
	{"element", RoleName},
}

func roleOf(cell string) Role {
	c := strings.ToLower(strings.TrimSpace(cell))
	if c == "" {
		return RoleUnknown
	}
	for _, a := range roleAliases {
		if strings.Contains(c, a.alias) {
			return a.role
		}
	}
	return RoleUnknown
}

// fallbackRoles is the positional layout assumed when the header row is
// unrecognized: the dominant column order across editions.
var fallbackRoles = []Role{RoleName, RoleBits, RoleUnits, RoleDescription}

// ResolveHeader maps a header row to column roles. ok reports whether
// the row was a usable header: it must name the field column and give
// some way to locate bits (a bits column, or start plus end or length).
// When ok is false the caller should fall back to positional roles and
// treat the row as data.
func ResolveHeader(row []string) (roles []Role, ok bool) {
	roles = make([]Role, len(row))
	seen := map[Role]bool{}
	for i, cell := range row {
		r := roleOf(cell)
		if r != RoleUnknown && seen[r] {
			r = RoleUnknown
		}
		roles[i] = r
		seen[r] = true
	}
	hasBits := seen[RoleBits] || (seen[RoleStart] && (seen[RoleEnd] || seen[RoleLength]))
	return roles, seen[RoleName] && hasBits
}

// PositionalRoles returns the fallback layout padded to width columns.
func PositionalRoles(width int) []Role {
	roles := make([]Role, width)
	for i := range roles {
		if i < len(fallbackRoles) {
			roles[i] = fallbackRoles[i]
		} else {
			roles[i] = RoleUnknown
		}
	}
	return roles
}
