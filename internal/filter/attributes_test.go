package filter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GlobalByReference(t *testing.T) {
	reg := NewRegistry()
	global := reg.Global("users")
	reg.RegisterGlobal("users", "name")
	reg.RegisterGlobal("users", "email")
	reg.RegisterGlobal("users", "name")

	assert.Equal(t, []string{"name", "email"}, global.Names())
	assert.Same(t, global, reg.Global("users"))
	assert.Empty(t, reg.Global("orders").Names())
}

func TestAttributes_WithoutInstanceSetUsesGlobal(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterGlobal("users", "name")

	attrs := NewAttributes(reg.Global("users"))
	attrs.Add("email")

	assert.Equal(t, []string{"name", "email"}, attrs.Effective())
	assert.True(t, reg.Global("users").Contains("email"), "Add falls back to the global set")
}

func TestAttributes_InstanceOverlay(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterGlobal("users", "id")
	reg.RegisterGlobal("users", "name")

	attrs := NewInstanceAttributes(reg.Global("users"), "name", "age")
	attrs.Add("city")

	assert.Equal(t, []string{"name", "age", "city", "id"}, attrs.Effective())
	assert.False(t, reg.Global("users").Contains("city"))
}

func TestAttributes_MergeIsIdempotent(t *testing.T) {
	global := &AttributeList{}
	global.Add("id")
	attrs := NewInstanceAttributes(global, "name")

	first := attrs.Effective()
	second := attrs.Effective()
	assert.Equal(t, []string{"name", "id"}, first)
	assert.Equal(t, first, second)
}

func TestAttributes_AddAfterMerge(t *testing.T) {
	global := &AttributeList{}
	global.Add("id")
	attrs := NewInstanceAttributes(global, "name")
	assert.Equal(t, []string{"name", "id"}, attrs.Effective())

	attrs.Add("age")
	attrs.Add("id")
	attrs.Add("age")

	assert.Equal(t, []string{"name", "id", "age"}, attrs.Effective())
	assert.True(t, attrs.instance.Contains("age"))
	assert.False(t, global.Contains("age"))
}

func TestAttributes_ConcurrentEffective(t *testing.T) {
	global := &AttributeList{}
	global.Add("id")
	attrs := NewInstanceAttributes(global, "name", "email")

	var wg sync.WaitGroup
	results := make([][]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = attrs.Effective()
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"name", "email", "id"}, r)
	}
}
