// Package documents holds the engine shared by every sales and delivery
// document: line arithmetic, totals aggregation with whole-unit rounding,
// transition tables, child reconciliation and history entries.
package documents
