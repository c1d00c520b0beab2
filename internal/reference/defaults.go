package reference

import (
	"github.com/joseph-ayodele/invoice-helper/constants"
)

const (
	AutomationProjectID = "20257601"
	WorkplaceProjectID  = "20257407"
	TeamsRoomsProjectID = "20257403"
	DefaultRGActivity   = "738"
)

var defaultProjects = map[string]Project{
	AutomationProjectID: {
		ID:              AutomationProjectID,
		KonProj:         KonProj(AutomationProjectID),
		Activity:        "050",
		ProjectCategory: "5420",
		Receiver:        "Digital Utveckling och integration",
		Automation:      true,
	},
	WorkplaceProjectID: {
		ID:              WorkplaceProjectID,
		KonProj:         KonProj(WorkplaceProjectID),
		Activity:        "738",
		ProjectCategory: "5420",
		Receiver:        "Digital Arbetsplats",
		Service:         true,
	},
	TeamsRoomsProjectID: {
		ID:              TeamsRoomsProjectID,
		KonProj:         KonProj(TeamsRoomsProjectID),
		Activity:        "738",
		ProjectCategory: "5420",
		Receiver:        "Digital Arbetsplats",
		Service:         true,
	},
}

// DefaultProducts are the Microsoft CSP licenses Atea bills us for.
func DefaultProducts() *Table[Product] {
	products := []Product{
		{Key: "Power BI Pro", Category: constants.SoftwareLicense},
		{Key: "Power Automate unattended RPA add-on", Category: constants.SoftwareLicense, ProjectID: AutomationProjectID},
		{Key: "Power Automate with att RPA plan", Category: constants.SoftwareLicense, ProjectID: AutomationProjectID},
		{Key: "Power Automate prem.", Category: constants.SoftwareLicense, ProjectID: AutomationProjectID},
		{Key: "MS Teams Rooms Pro", Category: constants.SoftwareLicense, ProjectID: TeamsRoomsProjectID},
		{Key: "MS Teams EEA", Category: constants.SoftwareLicense, ProjectID: WorkplaceProjectID},
		{Key: "MS Copilot for MS 365", Category: constants.SoftwareLicense, ProjectID: WorkplaceProjectID},
		{Key: "MS 365 E3 EEA (no Teams)", Category: constants.SoftwareLicense, ProjectID: WorkplaceProjectID},
	}
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.Key] = p
	}
	return NewTable(m)
}

// DefaultProjects returns the built-in settings of the known projects.
func DefaultProjects() *Table[Project] {
	return NewTable(defaultProjects)
}

// DefaultTables holds the built-in products and projects and no users.
func DefaultTables() Tables {
	return Tables{
		Users:    NewTable(map[string]User{}),
		Projects: DefaultProjects(),
		Products: DefaultProducts(),
	}
}
