package lazyload

import (
	"fmt"
	"path"
	"strings"

	"github.com/gaborage/go-bricks-lazyload/config"
)

const (
	// DefaultProxyPackage is the package name generated proxy types live in.
	DefaultProxyPackage = config.DefaultProxyPackage
	// DefaultGetterPrefix marks navigation-property accessors on proxy types.
	DefaultGetterPrefix = config.DefaultGetterPrefix
	proxyTypeSuffix     = "Proxy"
)

// FrameMatcher reports whether a frame belongs to a generated proxy type.
type FrameMatcher func(Frame) bool

// InPackage matches frames whose declaring type lives in a package with the
// given name (the last element of the import path).
func InPackage(name string) FrameMatcher {
	return func(f Frame) bool {
		pkg := f.PackagePath()
		return pkg != "" && path.Base(pkg) == name
	}
}

// NamespacePrefix matches frames whose qualified declaring type starts with prefix.
func NamespacePrefix(prefix string) FrameMatcher {
	return func(f Frame) bool {
		return f.DeclaringType != "" && strings.HasPrefix(f.DeclaringType, prefix)
	}
}

// CallSite identifies where a deferred load was triggered from.
type CallSite struct {
	File     string
	Line     int
	Column   int
	Property string
	Entity   string
}

// String renders the call-site key used for aggregation.
func (c CallSite) String() string {
	return fmt.Sprintf("%s(%d,%d): lazy load detected accessing navigation property %s from entity %s",
		c.File, c.Line, c.Column, c.Property, c.Entity)
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithProxyMatcher replaces the proxy-frame predicate.
func WithProxyMatcher(m FrameMatcher) ClassifierOption {
	return func(c *Classifier) {
		if m != nil {
			c.isProxy = m
		}
	}
}

// WithGetterPrefix replaces the accessor method prefix.
func WithGetterPrefix(prefix string) ClassifierOption {
	return func(c *Classifier) {
		if prefix != "" {
			c.getterPrefix = prefix
		}
	}
}

// WithEntityNamer replaces the function mapping an unqualified proxy type name
// to the entity name reported in call sites.
func WithEntityNamer(fn func(proxyType string) string) ClassifierOption {
	return func(c *Classifier) {
		if fn != nil {
			c.entityName = fn
		}
	}
}

// Classifier decides whether a stack was produced by a navigation-property
// access on a proxy and, if so, where that access happened.
type Classifier struct {
	isProxy      FrameMatcher
	getterPrefix string
	entityName   func(string) string
}

// NewClassifier returns a classifier matching Get* methods of types declared in
// a package named "proxies" unless overridden.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		isProxy:      InPackage(DefaultProxyPackage),
		getterPrefix: DefaultGetterPrefix,
		entityName:   defaultEntityName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultEntityName(proxyType string) string {
	return strings.TrimSuffix(proxyType, proxyTypeSuffix)
}

// Classify scans stack from the innermost frame outward. The first proxy
// getter frame names the property and entity; the frame after it is the
// caller whose location is reported. A getter at the outermost frame yields
// an empty location.
func (c *Classifier) Classify(stack StackTrace) (CallSite, bool) {
	for i, f := range stack {
		if !c.isGetter(f) {
			continue
		}

		site := CallSite{
			Property: strings.TrimPrefix(f.Method, c.getterPrefix),
			Entity:   c.entityName(f.TypeName()),
		}
		if i+1 < len(stack) {
			caller := stack[i+1]
			site.File, site.Line, site.Column = caller.File, caller.Line, caller.Column
		}
		return site, true
	}
	return CallSite{}, false
}

func (c *Classifier) isGetter(f Frame) bool {
	if f.DeclaringType == "" || strings.Contains(f.Method, ".") {
		return false
	}
	if len(f.Method) <= len(c.getterPrefix) || !strings.HasPrefix(f.Method, c.getterPrefix) {
		return false
	}
	return c.isProxy(f)
}
