package resolve

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-helper/constants"
	"github.com/joseph-ayodele/invoice-helper/internal/entity"
	"github.com/joseph-ayodele/invoice-helper/internal/reference"
)

type Options struct {
	// MaxDistance bounds the fuzzy tier of reference matching.
	MaxDistance int
}

// Resolver attaches cost center, project and user to line items.
type Resolver struct {
	maxDistance int
	logger      *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDistance < 0 {
		opts.MaxDistance = 0
	}
	return &Resolver{maxDistance: opts.MaxDistance, logger: logger}
}

var (
	reVendorPrefix = regexp.MustCompile(`(?i)^csp\s*-\s*`)
	reBillingTag   = regexp.MustCompile(`(?i)\s*\((cycle|corr|nce|annual|monthly|yearly|trial)\)\s*$`)
)

// ProductKey reduces an invoice description to the product name used as key
// in the products table: "CSP -MS Teams EEA (Cycle)" becomes "MS Teams EEA".
func ProductKey(description string) string {
	s := strings.Join(strings.Fields(description), " ")
	s = reVendorPrefix.ReplaceAllString(s, "")
	for {
		next := reBillingTag.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// Resolve returns exactly one resolved item per candidate, in order.
func (r *Resolver) Resolve(cands []entity.LineItemCandidate, tables reference.Tables) []entity.ResolvedLineItem {
	out := make([]entity.ResolvedLineItem, len(cands))
	var unresolved int
	for i, c := range cands {
		out[i] = r.resolveOne(c, tables)
		if !out[i].Resolved {
			unresolved++
			r.logger.Warn("resolve.unresolved", "line", c.SourceLineIndex, "description", c.Description, "reason", out[i].Reason)
		}
	}
	r.logger.Info("resolve.done", "items", len(out), "unresolved", unresolved)
	return out
}

func unresolved(c entity.LineItemCandidate, attr entity.Attribution, format string, args ...any) entity.ResolvedLineItem {
	attr.CostCenter = constants.UnresolvedMarker
	attr.Project = constants.UnresolvedMarker
	return entity.ResolvedLineItem{
		Candidate:   c,
		Attribution: attr,
		Resolved:    false,
		Reason:      fmt.Sprintf(format, args...),
	}
}

func describe(m reference.MatchResult) string {
	if m.Tier == reference.Ambiguous {
		return "ambiguous between " + strings.Join(m.Tied, ", ")
	}
	return "no match"
}

func (r *Resolver) resolveOne(c entity.LineItemCandidate, tables reference.Tables) entity.ResolvedLineItem {
	var attr entity.Attribution

	key := ProductKey(c.Description)
	pm := reference.Match(key, tables.Products, r.maxDistance)
	if !pm.Matched() {
		return unresolved(c, attr, "product %q: %s", key, describe(pm))
	}
	product, _ := tables.Products.Get(pm.Key)
	attr.Product = product.Key
	attr.Category = string(product.Category)

	users, reason := r.matchUsers(c.Continuation, tables)
	if reason != "" {
		return unresolved(c, attr, "%s", reason)
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	attr.User = strings.Join(names, ", ")
	rgs := distinctRGs(users)

	if product.ProjectID != "" {
		applyProject(&attr, tables, product.ProjectID)
		switch {
		case len(rgs) == 1:
			attr.CostCenter = rgs[0]
		case product.CostCenter != "":
			attr.CostCenter = product.CostCenter
		}
		return entity.ResolvedLineItem{Candidate: c, Attribution: attr, Resolved: true}
	}

	eligible := 0
	for _, u := range users {
		if u.ProjectEligible() {
			eligible++
		}
	}
	switch {
	case len(users) == 0 && product.CostCenter != "":
		attr.CostCenter = product.CostCenter
		attr.Activity = reference.DefaultRGActivity
	case len(users) == 0:
		return r.withoutUsers(c, attr, product, tables)
	case eligible == len(users):
		applyProject(&attr, tables, tables.AutomationProject().ID)
	case eligible > 0:
		return unresolved(c, attr, "users %s mix automation and RG booking", attr.User)
	case len(rgs) > 1:
		return unresolved(c, attr, "users %s belong to several RGs (%s)", attr.User, strings.Join(rgs, ", "))
	default:
		attr.CostCenter = rgs[0]
		attr.Activity = reference.DefaultRGActivity
	}
	return entity.ResolvedLineItem{Candidate: c, Attribution: attr, Resolved: true}
}

// withoutUsers handles a per-RG product whose line names nobody. The row is
// not split, but the users table tells how the seats would spread over RGs.
func (r *Resolver) withoutUsers(c entity.LineItemCandidate, attr entity.Attribution, product reference.Product, tables reference.Tables) entity.ResolvedLineItem {
	perRG := map[string]int{}
	seats := 0
	tables.Users.Each(func(_ string, u reference.User) {
		if u.ProjectEligible() || u.RG == "" {
			return
		}
		perRG[u.RG]++
		seats++
	})
	if seats == 0 {
		return unresolved(c, attr, "product %q is booked per RG but no user was found on the line", product.Key)
	}
	rgs := make([]string, 0, len(perRG))
	for rg := range perRG {
		rgs = append(rgs, rg)
	}
	sort.Strings(rgs)
	split := make([]string, len(rgs))
	for i, rg := range rgs {
		split[i] = fmt.Sprintf("%s: %d", rg, perRG[rg])
	}
	item := unresolved(c, attr, "product %q is booked per RG but no user was found on the line; users table has %d RG users (%s)",
		product.Key, seats, strings.Join(split, ", "))
	if c.Quantity != nil && !c.Quantity.Value.Equal(decimal.NewFromInt(int64(seats))) {
		item.Notes = append(item.Notes, fmt.Sprintf("quantity %s does not match the %d RG users in the users table",
			c.Quantity.Value.String(), seats))
		r.logger.Warn("resolve.seat_mismatch", "product", product.Key, "quantity", c.Quantity.Value.String(), "users", seats)
	}
	return item
}

// matchUsers matches every continuation line against the users table. Lines
// that match nobody are ignored; an ambiguous line fails the whole item.
func (r *Resolver) matchUsers(lines []string, tables reference.Tables) ([]reference.User, string) {
	var users []reference.User
	seen := map[string]bool{}
	for _, l := range lines {
		m := reference.Match(l, tables.Users, r.maxDistance)
		switch {
		case m.Tier == reference.Ambiguous:
			return nil, fmt.Sprintf("user %q: %s", l, describe(m))
		case !m.Matched() || seen[m.Key]:
			continue
		}
		seen[m.Key] = true
		u, _ := tables.Users.Get(m.Key)
		users = append(users, u)
	}
	return users, ""
}

func distinctRGs(users []reference.User) []string {
	set := map[string]bool{}
	for _, u := range users {
		if u.RG != "" {
			set[u.RG] = true
		}
	}
	out := make([]string, 0, len(set))
	for rg := range set {
		out = append(out, rg)
	}
	sort.Strings(out)
	return out
}

func applyProject(attr *entity.Attribution, tables reference.Tables, id string) {
	p, _ := tables.Project(id)
	attr.Project = p.KonProj
	attr.Activity = p.Activity
	attr.ProjectCategory = p.ProjectCategory
	attr.Receiver = p.Receiver
}

// Diagnostics reports every unresolved item, and every item note, as a
// ResolutionAmbiguous warning.
func Diagnostics(items []entity.ResolvedLineItem) []entity.Diagnostic {
	var out []entity.Diagnostic
	for _, it := range items {
		for _, n := range it.Notes {
			out = append(out, entity.Diagnostic{
				Stage:    constants.RunStateResolving,
				Kind:     constants.KindResolutionAmbiguous,
				Severity: constants.SeverityWarning,
				Message:  fmt.Sprintf("%q: %s", it.Candidate.Description, n),
				Lines:    it.Candidate.SourceLines,
			})
		}
		if it.Resolved {
			continue
		}
		out = append(out, entity.Diagnostic{
			Stage:    constants.RunStateResolving,
			Kind:     constants.KindResolutionAmbiguous,
			Severity: constants.SeverityWarning,
			Message:  fmt.Sprintf("%q: %s", it.Candidate.Description, it.Reason),
			Lines:    it.Candidate.SourceLines,
		})
	}
	return out
}
