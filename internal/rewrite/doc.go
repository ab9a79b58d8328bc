// Package rewrite replaces remote image URLs in document text with
// their destination locations. Only URLs whose download succeeded (or
// was skipped as already present) are rewritten; failed URLs keep
// their original form so a later run can pick them up.
package rewrite
