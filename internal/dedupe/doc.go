// Package dedupe remembers recently seen one-shot request ids so a retried
// call does not apply its side effects twice.
package dedupe
