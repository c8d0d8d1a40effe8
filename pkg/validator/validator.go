// Package validator performs the static checks that gate execution.
// Checks run in four ordered stages (structure, permission, dependency,
// type) and stop at the first stage that produces errors so an agent
// always sees the most fundamental problems first.
package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/flowgate/flowgate/internal/authz"
	"github.com/flowgate/flowgate/pkg/catalog"
	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

// Validator checks parsed workflows against an agent's allowed catalog.
type Validator struct {
	catalog *catalog.Catalog
	authz   *authz.Checker
}

// New creates a validator over the built-in catalog and the capability
// checker.
func New(cat *catalog.Catalog, checker *authz.Checker) *Validator {
	return &Validator{catalog: cat, authz: checker}
}

// Validate runs all stages and returns the collected issues. The report
// is valid only when no error-severity issues remain. The error return
// signals an internal failure, not a workflow problem.
func (v *Validator) Validate(ctx context.Context, allowed *domain.AllowedCatalog, wf *domain.Workflow) (*domain.ValidationReport, error) {
	report := &domain.ValidationReport{Valid: true}

	v.checkStructure(wf, report)
	if report.HasErrors() {
		report.Valid = false
		return report, nil
	}

	permIssues, err := v.authz.CheckWorkflow(ctx, allowed, wf)
	if err != nil {
		return nil, err
	}
	for _, issue := range permIssues {
		report.Add(issue)
	}
	if report.HasErrors() {
		report.Valid = false
		return report, nil
	}

	v.checkDependencies(wf, report)
	if report.HasErrors() {
		report.Valid = false
		return report, nil
	}

	v.checkTypes(wf, report)
	report.Valid = !report.HasErrors()
	return report, nil
}

func structureError(opID, message, suggestion string) domain.Issue {
	return domain.Issue{
		Severity:    domain.SeverityError,
		Category:    domain.IssueStructure,
		OperationID: opID,
		Message:     message,
		Suggestion:  suggestion,
	}
}

// checkStructure verifies the workflow shape: a non-empty order over
// defined ids, per-kind argument schemas, and the placement rules for
// Conditional branches and Loop bodies.
func (v *Validator) checkStructure(wf *domain.Workflow, report *domain.ValidationReport) {
	if len(wf.Order) == 0 {
		report.Add(structureError("", "workflow order is empty",
			"declare at least one operation id in the execution order"))
		return
	}

	position := make(map[string]int, len(wf.Order))
	for i, id := range wf.Order {
		if _, defined := wf.Operations[id]; !defined {
			report.Add(structureError(id,
				fmt.Sprintf("order references undefined operation %q", id),
				"define the operation before referencing it in the order"))
		}
		if prev, seen := position[id]; seen {
			report.Add(structureError(id,
				fmt.Sprintf("operation %q appears in the order at positions %d and %d", id, prev, i),
				"each operation may appear in the order at most once"))
			continue
		}
		position[id] = i
	}

	loopBodies := make(map[string]string) // body id -> loop id
	for _, id := range sortedIDs(wf.Operations) {
		op := wf.Operations[id]
		desc, ok := v.catalog.Get(op.Kind)
		if !ok {
			report.Add(structureError(id,
				fmt.Sprintf("unknown operation kind %q", op.Kind),
				"supported kinds: "+strings.Join(sortedKinds(v.catalog), ", ")))
			continue
		}
		if desc.Validate != nil {
			for _, issue := range desc.Validate(op.Args) {
				issue.OperationID = id
				report.Add(issue)
			}
		}

		switch op.Kind {
		case catalog.KindConditional:
			v.checkBranchPlacement(wf, op, position, report)
		case catalog.KindLoop:
			for _, bodyID := range stringList(op.Args["operations"]) {
				if _, defined := wf.Operations[bodyID]; !defined {
					report.Add(structureError(id,
						fmt.Sprintf("loop body references undefined operation %q", bodyID),
						"define every loop body operation"))
					continue
				}
				if _, inOrder := position[bodyID]; inOrder {
					report.Add(structureError(id,
						fmt.Sprintf("loop body operation %q must not appear in the outer order", bodyID),
						"loop bodies run only inside their loop"))
				}
				loopBodies[bodyID] = id
			}
		}
	}

	branchMembers := conditionalBranchMembers(wf)
	for _, id := range sortedIDs(wf.Operations) {
		if _, inOrder := position[id]; inOrder {
			continue
		}
		if _, isBody := loopBodies[id]; isBody {
			continue
		}
		if branchMembers[id] {
			continue
		}
		report.Add(domain.Issue{
			Severity:    domain.SeverityWarning,
			Category:    domain.IssueStructure,
			OperationID: id,
			Message:     fmt.Sprintf("operation %q is defined but never executed", id),
			Suggestion:  "add it to the order or remove the definition",
		})
	}
}

// checkBranchPlacement enforces the gate convention: branch operations
// are ordinary members of the outer order positioned after their
// Conditional.
func (v *Validator) checkBranchPlacement(wf *domain.Workflow, op *domain.Operation, position map[string]int, report *domain.ValidationReport) {
	condPos, inOrder := position[op.ID]
	for _, key := range []string{"ifTrue", "ifFalse"} {
		for _, branchID := range stringList(op.Args[key]) {
			if _, defined := wf.Operations[branchID]; !defined {
				report.Add(structureError(op.ID,
					fmt.Sprintf("branch references undefined operation %q", branchID),
					"define every branch operation"))
				continue
			}
			branchPos, branchInOrder := position[branchID]
			if !branchInOrder {
				report.Add(structureError(op.ID,
					fmt.Sprintf("branch operation %q must appear in the outer order", branchID),
					"conditional branches gate operations in the order; they are not inlined"))
				continue
			}
			if inOrder && branchPos <= condPos {
				report.Add(structureError(op.ID,
					fmt.Sprintf("branch operation %q must come after the conditional in the order", branchID),
					"move the branch operation after the conditional"))
			}
		}
	}
}

// checkDependencies walks the declared order and verifies every
// reference path is covered by an earlier operation's outputPath. Loop
// bodies additionally see the loop binding paths and the outputs of
// earlier body operations in the same loop. A Conditional's condition
// path is exempt: exists/empty checks target paths that may never be
// produced, matching the executor's substitution rule.
func (v *Validator) checkDependencies(wf *domain.Workflow, report *domain.ValidationReport) {
	var produced []datamodel.Path
	loopScope, _ := datamodel.ParsePath(catalog.LoopScopePath)

	checkOp := func(op *domain.Operation, inLoop bool) {
		for _, ref := range datamodel.CollectRefs(op.Args, catalog.RefSkipFunc(op.Kind)) {
			if inLoop && ref.HasPrefix(loopScope) {
				continue
			}
			if coveredBy(ref, produced) {
				continue
			}
			report.Add(domain.Issue{
				Severity:    domain.SeverityError,
				Category:    domain.IssueDependency,
				OperationID: op.ID,
				Message:     fmt.Sprintf("references %s which no earlier operation produces", ref.String()),
				Suggestion:  "reorder the workflow so the producing operation comes first",
			})
		}
	}

	for _, id := range wf.Order {
		op := wf.Operations[id]
		checkOp(op, false)

		if op.Kind == catalog.KindLoop {
			for _, bodyID := range stringList(op.Args["operations"]) {
				body, ok := wf.Operations[bodyID]
				if !ok {
					continue
				}
				checkOp(body, true)
				if out, ok := outputPathOf(body); ok {
					produced = append(produced, out)
				}
			}
		}
		if out, ok := outputPathOf(op); ok {
			produced = append(produced, out)
		}
	}
}

func coveredBy(ref datamodel.Path, produced []datamodel.Path) bool {
	for _, p := range produced {
		if ref.HasPrefix(p) || p.HasPrefix(ref) {
			return true
		}
	}
	return false
}

// checkTypes verifies that array-input arguments reference array-typed
// upstream outputs. Only exact outputPath matches are checked; a
// reference into the interior of an output cannot be typed statically.
func (v *Validator) checkTypes(wf *domain.Workflow, report *domain.ValidationReport) {
	producers := make(map[string]*domain.Operation)
	for _, op := range wf.Operations {
		if out, ok := outputPathOf(op); ok {
			producers[out.String()] = op
		}
	}

	for _, id := range sortedIDs(wf.Operations) {
		op := wf.Operations[id]
		desc, ok := v.catalog.Get(op.Kind)
		if !ok {
			continue
		}
		want := catalog.OutputArray
		if op.Kind == catalog.KindMergeData && op.Args["strategy"] == "deepMerge" {
			want = catalog.OutputObject
		}
		for _, key := range desc.ArrayInputKeys {
			for _, ref := range refStrings(op.Args[key]) {
				producer, ok := producers[ref]
				if !ok {
					continue
				}
				pdesc, ok := v.catalog.Get(producer.Kind)
				if !ok {
					continue
				}
				got := pdesc.OutputType(producer.Args)
				if got == want || got == catalog.OutputAny {
					continue
				}
				report.Add(domain.Issue{
					Severity:    domain.SeverityError,
					Category:    domain.IssueType,
					OperationID: id,
					Message: fmt.Sprintf("%s references %s produced by %q with output type %s, expected %s",
						key, ref, producer.ID, got, want),
					Suggestion: "reference an operation that outputs the expected type",
				})
			}
		}
	}
}

// refStrings extracts the path strings of an array-input argument, which
// is either a single path or a list of paths.
func refStrings(v any) []string {
	switch val := v.(type) {
	case string:
		if datamodel.IsPath(val) {
			return []string{val}
		}
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && datamodel.IsPath(s) {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func outputPathOf(op *domain.Operation) (datamodel.Path, bool) {
	raw, ok := op.Args["outputPath"].(string)
	if !ok || raw == "" {
		return datamodel.Path{}, false
	}
	p, err := datamodel.ParsePath(raw)
	if err != nil {
		return datamodel.Path{}, false
	}
	return p, true
}

func conditionalBranchMembers(wf *domain.Workflow) map[string]bool {
	members := make(map[string]bool)
	for _, op := range wf.Operations {
		if op.Kind != catalog.KindConditional {
			continue
		}
		for _, key := range []string{"ifTrue", "ifFalse"} {
			for _, id := range stringList(op.Args[key]) {
				members[id] = true
			}
		}
	}
	return members
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedIDs(ops map[string]*domain.Operation) []string {
	ids := make([]string, 0, len(ops))
	for id := range ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKinds(c *catalog.Catalog) []string {
	kinds := c.Kinds()
	sort.Strings(kinds)
	return kinds
}
