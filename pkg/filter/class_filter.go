// Package filter classifies Java class names so consumers can separate
// business/application code from JDK and framework internals.
package filter

import (
	"strings"
	"sync"
)

// ClassCategory represents the category of a class.
type ClassCategory int

const (
	// CategoryUnknown indicates the class category is unknown.
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive indicates primitive types and their arrays.
	CategoryPrimitive
	// CategoryJDK indicates JDK internal classes.
	CategoryJDK
	// CategoryFramework indicates framework internal classes.
	CategoryFramework
	// CategoryApplication indicates application-level classes (including framework beans).
	CategoryApplication
	// CategoryBusiness indicates business/user code classes.
	CategoryBusiness
)

// String returns the string representation of the category.
func (c ClassCategory) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryJDK:
		return "jdk"
	case CategoryFramework:
		return "framework"
	case CategoryApplication:
		return "application"
	case CategoryBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// ClassFilter provides unified class name filtering logic.
// It is safe for concurrent use.
type ClassFilter struct {
	mu sync.RWMutex

	primitiveArrays           map[string]bool
	jdkPrefixes               []string
	frameworkInternalPrefixes []string
	businessPrefixes          []string

	// Cache for frequently queried classes
	categoryCache     map[string]ClassCategory
	categoryCacheSize int
}

// NewClassFilter creates a new ClassFilter with default rules.
func NewClassFilter() *ClassFilter {
	f := &ClassFilter{
		primitiveArrays:   make(map[string]bool),
		categoryCache:     make(map[string]ClassCategory),
		categoryCacheSize: 10000, // Cache up to 10k classes
	}
	f.initDefaults()
	return f
}

// initDefaults initializes default filtering rules.
func (f *ClassFilter) initDefaults() {
	f.primitiveArrays = map[string]bool{
		"byte[]":    true,
		"char[]":    true,
		"int[]":     true,
		"long[]":    true,
		"short[]":   true,
		"boolean[]": true,
		"float[]":   true,
		"double[]":  true,
	}

	f.jdkPrefixes = []string{
		"java.lang.",
		"java.util.",
		"java.io.",
		"java.nio.",
		"java.net.",
		"java.security.",
		"java.math.",
		"java.text.",
		"java.time.",
		"java.sql.",
		"java.reflect.",
		"javax.",
		"sun.",
		"com.sun.",
		"jdk.",
	}

	// Framework internal class prefixes (deep internals only) — implementation
	// details that are almost never the root cause of a memory issue.
	f.frameworkInternalPrefixes = []string{
		"org.springframework.aop.framework.",
		"org.springframework.beans.factory.support.",
		"org.springframework.context.annotation.ConfigurationClassParser",
		"org.springframework.core.annotation.AnnotationUtils",
		"org.springframework.util.ConcurrentReferenceHashMap",
		"io.netty.buffer.PoolArena",
		"io.netty.buffer.PoolChunk",
		"io.netty.buffer.PoolSubpage",
		"io.netty.buffer.PoolThreadCache",
		"io.netty.util.internal.",
		"io.netty.util.Recycler",
		"com.google.common.collect.",
		"com.google.common.cache.",
		"org.slf4j.impl.",
		"ch.qos.logback.core.",
		"ch.qos.logback.classic.spi.",
		"com.fasterxml.jackson.core.json.",
		"com.fasterxml.jackson.databind.cfg.",
		"com.fasterxml.jackson.databind.introspect.",
		"net.bytebuddy.description.",
		"net.bytebuddy.pool.",
		"net.bytebuddy.dynamic.",
		"io.opentelemetry.javaagent.tooling.",
		"io.opentelemetry.javaagent.shaded.",
		"io.opentelemetry.javaagent.bootstrap.",
		"com.alibaba.arthas.deps.",
	}
}

// Classify returns the category of a class.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}

	f.mu.RLock()
	if cat, ok := f.categoryCache[className]; ok {
		f.mu.RUnlock()
		return cat
	}
	f.mu.RUnlock()

	cat := f.classifyUncached(className)

	f.mu.Lock()
	if len(f.categoryCache) < f.categoryCacheSize {
		f.categoryCache[className] = cat
	}
	f.mu.Unlock()

	return cat
}

// classifyUncached computes the category without using cache.
func (f *ClassFilter) classifyUncached(className string) ClassCategory {
	if f.primitiveArrays[className] {
		return CategoryPrimitive
	}

	if strings.HasSuffix(className, "[]") {
		return CategoryJDK
	}

	for _, prefix := range f.jdkPrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryJDK
		}
	}

	for _, prefix := range f.frameworkInternalPrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryFramework
		}
	}

	f.mu.RLock()
	businessPrefixes := f.businessPrefixes
	f.mu.RUnlock()

	for _, prefix := range businessPrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryBusiness
		}
	}

	// Default to application level (includes framework beans, consumers, etc.)
	return CategoryApplication
}

// IsBusiness returns true if the class is likely a business/user code class.
// This is true for both CategoryApplication and CategoryBusiness.
func (f *ClassFilter) IsBusiness(className string) bool {
	cat := f.Classify(className)
	return cat == CategoryApplication || cat == CategoryBusiness
}

// AddBusinessPrefix adds a custom business package prefix.
// Classes with this prefix will be classified as CategoryBusiness.
func (f *ClassFilter) AddBusinessPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.businessPrefixes {
		if p == prefix {
			return
		}
	}

	f.businessPrefixes = append(f.businessPrefixes, prefix)

	// Clear cache since classification may change
	f.categoryCache = make(map[string]ClassCategory)
}

// AddBusinessPrefixes adds multiple custom business package prefixes.
func (f *ClassFilter) AddBusinessPrefixes(prefixes []string) {
	for _, prefix := range prefixes {
		f.AddBusinessPrefix(prefix)
	}
}
