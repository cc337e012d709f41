// Package bootstrap populates a capability registry from a YAML manifest and
// ships the default manifest and workflows used by the capflow binary.
package bootstrap
