package planner

// Path is the DynamoDB operation a plan is executed with.
type Path string

const (
	PathGetItem Path = "GetItem"
	PathQuery   Path = "Query"
	PathScan    Path = "Scan"
)

// SelectPath routes a plan: a full table key is a point lookup, a partition
// key (on the table or an index) is a query, anything else is a scan.
func SelectPath(plan AccessPlan) Path {
	switch {
	case plan.HasPartitionKey && plan.HasSortKey && plan.IndexName == "":
		return PathGetItem
	case plan.HasPartitionKey:
		return PathQuery
	default:
		return PathScan
	}
}
