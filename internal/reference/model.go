package reference

import (
	"strings"

	"github.com/joseph-ayodele/invoice-helper/constants"
)

// SpecialAutomation marks users whose licenses are booked on the automation
// project instead of their RG.
const SpecialAutomation = "Automation"

type User struct {
	Name       string
	RG         string
	CostCenter string // Kostnadsställe
	Special    string // Specialhantering
}

func (u User) ProjectEligible() bool {
	return strings.EqualFold(strings.TrimSpace(u.Special), SpecialAutomation)
}

type Project struct {
	ID              string // without the "P." prefix
	KonProj         string // "P.<id>"
	Activity        string
	ProjectCategory string
	Receiver        string
	Automation      bool
	Service         bool
}

type Product struct {
	Key        string
	Category   constants.Category
	ProjectID  string
	CostCenter string
}

// Tables is the reference data a run resolves against.
type Tables struct {
	Users    *Table[User]
	Projects *Table[Project]
	Products *Table[Product]
}

// ProjectID strips the "P." prefix used in the Kon/Proj column.
func ProjectID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P.") {
		return s[2:]
	}
	return s
}

// KonProj renders a project id the way Medius expects it.
func KonProj(id string) string {
	return "P." + ProjectID(id)
}

// Project returns the settings for id. Unknown projects get the default
// settings of a known project, or the generic fallback; ok is false then.
func (t Tables) Project(id string) (Project, bool) {
	id = ProjectID(id)
	if p, found := t.Projects.Get(id); found {
		return p, true
	}
	if p, found := defaultProjects[id]; found {
		return p, false
	}
	return Project{
		ID:              id,
		KonProj:         KonProj(id),
		Activity:        "738",
		ProjectCategory: "5420",
		Receiver:        "Okänd mottagare",
	}, false
}

// AutomationProject returns the project automation users are booked on.
func (t Tables) AutomationProject() Project {
	var found *Project
	t.Projects.Each(func(_ string, p Project) {
		if found == nil && p.Automation {
			found = &p
		}
	})
	if found != nil {
		return *found
	}
	p, _ := t.Project(AutomationProjectID)
	return p
}
