// Package registry resolves the named computations behind computed-result
// steps, such as the skin lesion analyzer.
package registry
