// Package schema classifies declarative field schemas into slot-filling
// plans and validates collected records against them before submission.
package schema
