package intent

import (
	"github.com/tanpawarit/chative-gateway/agent/remote"
	"github.com/tanpawarit/chative-gateway/agent/tool"
)

const (
	verbCreate = `(?:add|create|insert|register)(?: a)?(?: new)?`
	verbShow   = `(?:show|list|display|get|view|see)(?: me)?`
	qtyWord    = `(?:quantity|qty|stock)`
	optProduct = `(?:product )?`
	employee   = `(?: for)?(?: employee)? (?P<employee_id>\S+)`
)

// DefaultRecognizers returns the built-in recognizers in priority order:
// multi-field commands first, bare listing and searching last.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		NewPatternRecognizer(tool.ToolCreateProduct, []string{
			verbCreate + ` product (?P<id>\S+) (?:named|called) (?P<name>.+?) in(?: category)? (?P<category>.+?) with ` + qtyWord + ` (?P<quantity>\S+)`,
			verbCreate + ` product (?P<id>\S+) (?:named|called) (?P<name>.+?) with ` + qtyWord + ` (?P<quantity>\S+) in(?: category)? (?P<category>.+?)`,
			verbCreate + ` product (?P<id>\S+) (?:named|called) (?P<name>.+?) in(?: category)? (?P<category>.+?)`,
			verbCreate + ` product (?P<id>\S+) (?:named|called) (?P<name>.+?)`,
		}, []string{
			"add product PROD999 named Ultra Fiber in Internet Services with quantity 100",
		}, "id"),

		NewPatternRecognizer(tool.ToolUpdateProduct, []string{
			`(?:update|set|change) ` + optProduct + `(?P<id>\S+) ` + qtyWord + ` to (?P<quantity>\S+)`,
			`(?:update|set|change) (?:the )?` + qtyWord + ` (?:of|for) ` + optProduct + `(?P<id>\S+) to (?P<quantity>\S+)`,
			`(?:update|change|set) ` + optProduct + `(?P<id>\S+) name to (?P<name>.+)`,
			`rename ` + optProduct + `(?P<id>\S+) to (?P<name>.+)`,
			`(?:update|change|set|move) ` + optProduct + `(?P<id>\S+) category to (?P<category>.+)`,
		}, []string{
			"update product SLT001 quantity to 600",
			"rename product SLT002 to PeoTV Max",
		}, "id"),

		NewPatternRecognizer(tool.ToolAdjustQuantity, []string{
			`(?P<direction>increase|decrease|reduce|raise|lower) (?:the )?` + qtyWord + ` (?:of|for) ` + optProduct + `(?P<id>\S+) by (?P<amount>\S+)`,
			`(?P<direction>increase|decrease|reduce|raise|lower) ` + optProduct + `(?P<id>\S+) ` + qtyWord + ` by (?P<amount>\S+)`,
			`(?P<direction>add|remove) (?P<amount>\d+) (?:units? |items? )?(?:to|from) ` + optProduct + `(?P<id>\S+)`,
		}, []string{
			"increase product SLT003 quantity by 50",
		}, "id"),

		NewPatternRecognizer(tool.ToolDeleteProduct, []string{
			`(?:delete|remove|drop) (?:the )?` + optProduct + `(?P<id>\S+)`,
		}, []string{
			"delete product SLT006",
		}, "id"),

		NewPatternRecognizer(tool.ToolGetProduct, []string{
			`(?:get|show|find|display|view|lookup|look up)(?: me)? (?:the )?(?:details (?:of|for) )?product (?P<id>\S+)`,
			`(?:product )?details (?:of|for) ` + optProduct + `(?P<id>\S+)`,
			`what is product (?P<id>\S+)`,
		}, []string{
			"show product SLT001",
		}, "id"),

		NewPatternRecognizer(remote.ToolGetLeaveBalance, []string{
			`(?:get|show|check|what is)(?: my| the)? leave balance` + employee,
			`leave balance` + employee,
		}, []string{
			"get leave balance for E123",
		}, "employee_id"),

		NewPatternRecognizer(remote.ToolGetLeaveHistory, []string{
			`(?:get|show|check)(?: my| the)? leave history` + employee,
			`leave history` + employee,
		}, []string{
			"show leave history for E123",
		}, "employee_id"),

		NewPatternRecognizer(remote.ToolApplyLeave, []string{
			`apply(?: for)? leave` + employee + ` from (?P<start_date>\S+) for (?P<days>\S+) days?(?: (?:for|because|reason) (?P<reason>.+))?`,
		}, []string{
			"apply leave for E123 from 2024-03-01 for 2 days for family event",
		}, "employee_id"),

		NewPatternRecognizer(remote.ToolGetLoanDetails, []string{
			`(?:get|show|check)(?: my| the)? loan details` + employee,
			`loan details` + employee,
		}, []string{
			"get loan details for E123",
		}, "employee_id"),

		NewPatternRecognizer(remote.ToolApplyForLoan, []string{
			`apply(?: for)?(?: a)? loan` + employee + `(?: of| for)? (?P<amount>\S+) (?:for|over) (?P<months>\S+) months?`,
		}, []string{
			"apply for loan for E123 of 50000 for 12 months",
		}, "employee_id"),

		NewPatternRecognizer(remote.ToolSearchHRPolicies, []string{
			`(?:search|find|lookup|look up)(?: hr)? polic(?:y|ies)(?: for| about| on)? (?P<query>.+)`,
			`what is the (?P<query>.+) policy`,
		}, []string{
			"search hr policies about remote work",
		}),

		NewPatternRecognizer(tool.ToolListProducts, []string{
			verbShow + `(?: all)?(?: the)?(?: available)? products`,
			verbShow + `(?: all)?(?: the)? products in(?: category)? (?P<category>.+)`,
			`what products do you have`,
		}, []string{
			"show all products",
			"list products in Digital TV",
		}),

		NewPatternRecognizer(tool.ToolSearchProducts, []string{
			`(?:search|find)(?: for)? products? (?:for|matching|named|with) (?P<term>.+)`,
			`(?:search|find|look) (?:for )?(?P<term>.+?)(?: products?)?`,
			`(?:show|list) (?P<term>.+?) products?`,
		}, []string{
			"search for fiber products",
		}),
	}
}
