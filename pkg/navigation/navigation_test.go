package navigation_test

import (
	"math/rand/v2"
	"testing"

	"github.com/germanamz/hostbridge/pkg/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	closed     int
	enrolled   int
	opened     []string
	shown      []string
	subscribed int
	wentBack   int
}

func (r *recorder) hooks() navigation.Hooks {
	return navigation.Hooks{
		Close:         func() { r.closed++ },
		Enroll:        func() { r.enrolled++ },
		OpenURL:       func(u string) { r.opened = append(r.opened, u) },
		MarkShown:     func(ref string) { r.shown = append(r.shown, ref) },
		SetSubscribed: func() { r.subscribed++ },
		GoBack:        func() { r.wentBack++ },
	}
}

func newController(r *recorder) *navigation.Controller {
	return navigation.NewController(navigation.Config{
		Enabled: true,
		RefID:   "banner-1",
		Hooks:   r.hooks(),
	})
}

func TestDefaultOptions(t *testing.T) {
	assert.Equal(t, navigation.Close, navigation.DefaultOptions("").BackPolicy)
	assert.Equal(t, navigation.Lock, navigation.DefaultOptions(navigation.Lock).BackPolicy)
	assert.Equal(t, navigation.Close, navigation.DefaultOptions("sideways").BackPolicy)
}

func TestReduce(t *testing.T) {
	o := navigation.DefaultOptions(navigation.Close)

	o = navigation.Reduce(o, navigation.SetBackPolicy{Policy: navigation.Lock})
	assert.Equal(t, navigation.Lock, o.BackPolicy)

	o = navigation.Reduce(o, navigation.SetBackPolicy{Policy: "bogus"})
	assert.Equal(t, navigation.Lock, o.BackPolicy)

	o = navigation.Reduce(o, navigation.SetLockScroll{Lock: true})
	o = navigation.Reduce(o, navigation.SetShowKeyboardAccessory{Show: true})
	assert.True(t, o.LockScroll)
	assert.True(t, o.ShowKeyboardAccessoryView)

	assert.Equal(t, o, navigation.Reduce(o, nil))
}

func TestExtractParams(t *testing.T) {
	p := navigation.ExtractParams("https://app.holders.io/x?backPolicy=back&showKAV=false&lockScroll=maybe&markAsShown=true", navigation.Close)

	require.NotNil(t, p.BackPolicy)
	assert.Equal(t, navigation.Back, *p.BackPolicy)
	require.NotNil(t, p.ShowKAV)
	assert.False(t, *p.ShowKAV)
	assert.Nil(t, p.LockScroll)
	assert.True(t, p.MarkAsShown)
	assert.False(t, p.CloseApp)

	p = navigation.ExtractParams("https://a/?backPolicy=lock", navigation.Close)
	require.NotNil(t, p.BackPolicy)
	assert.Equal(t, navigation.Close, *p.BackPolicy)

	p = navigation.ExtractParams("https://a/", navigation.Close)
	assert.Nil(t, p.BackPolicy)
	assert.Empty(t, p.Actions())

	p = navigation.ExtractParams("://bad url", navigation.Close)
	assert.Equal(t, navigation.Params{}, p)
}

func TestOnNavigation_Scenario(t *testing.T) {
	r := &recorder{}
	c := newController(r)

	d := c.OnNavigation("https://app.holders.io/?backPolicy=back&lockScroll=true&subscribed=true")

	assert.Equal(t, navigation.None, d)
	assert.Equal(t, navigation.Options{BackPolicy: navigation.Back, LockScroll: true}, c.Options())
	assert.Equal(t, []string{"banner-1"}, r.shown)
	assert.Equal(t, 1, r.subscribed)
	assert.Zero(t, r.closed)
}

func TestOnNavigation_DirectivePriority(t *testing.T) {
	r := &recorder{}
	c := newController(r)

	d := c.OnNavigation("https://a/?openUrl=https://tonhub.com&openEnrollment=true&closeApp=true&lockScroll=true")
	assert.Equal(t, navigation.CloseApp, d)
	assert.Equal(t, 1, r.closed)
	assert.Zero(t, r.enrolled)
	assert.Empty(t, r.opened)
	assert.False(t, c.Options().LockScroll, "state directives are skipped")

	d = c.OnNavigation("https://a/?openUrl=https://tonhub.com&openEnrollment=true")
	assert.Equal(t, navigation.OpenEnrollment, d)
	assert.Equal(t, 1, r.enrolled)
	assert.Empty(t, r.opened)

	d = c.OnNavigation("https://a/?openUrl=https%3A%2F%2Ftonhub.com%2Fx&lockScroll=true")
	assert.Equal(t, navigation.OpenURL, d)
	assert.Equal(t, []string{"https://tonhub.com/x"}, r.opened)
	assert.False(t, c.Options().LockScroll)
}

func TestOnNavigation_MarkShownWithoutRef(t *testing.T) {
	r := &recorder{}
	c := navigation.NewController(navigation.Config{Enabled: true, Hooks: r.hooks()})

	c.OnNavigation("https://a/?markAsShown=true")
	assert.Empty(t, r.shown)
}

func TestOnNavigation_Disabled(t *testing.T) {
	r := &recorder{}
	c := navigation.NewController(navigation.Config{Hooks: r.hooks()})

	assert.Equal(t, navigation.None, c.OnNavigation("https://a/?closeApp=true&lockScroll=true"))
	assert.Zero(t, r.closed)
	assert.Equal(t, navigation.DefaultOptions(navigation.Close), c.Options())
}

// The final state equals the left fold of all recognized directives.
func TestOnNavigation_FoldProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	pieces := []struct {
		query  string
		action navigation.Action
	}{
		{"backPolicy=back", navigation.SetBackPolicy{Policy: navigation.Back}},
		{"backPolicy=close", navigation.SetBackPolicy{Policy: navigation.Close}},
		{"backPolicy=whatever", navigation.SetBackPolicy{Policy: navigation.Close}},
		{"lockScroll=true", navigation.SetLockScroll{Lock: true}},
		{"lockScroll=false", navigation.SetLockScroll{Lock: false}},
		{"showKAV=true", navigation.SetShowKeyboardAccessory{Show: true}},
		{"showKAV=false", navigation.SetShowKeyboardAccessory{Show: false}},
		{"unknown=1", nil},
		{"lockScroll=yes", nil},
	}

	for run := 0; run < 50; run++ {
		c := newController(&recorder{})
		want := c.Options()

		for ev := 0; ev < 10; ev++ {
			pc := pieces[rng.IntN(len(pieces))]
			c.OnNavigation("https://a/?" + pc.query)
			want = navigation.Reduce(want, pc.action)
		}

		assert.Equal(t, want, c.Options())
	}
}

func TestHandleBack(t *testing.T) {
	r := &recorder{}
	c := newController(r)

	// Close before the initial load is swallowed.
	assert.True(t, c.HandleBack())
	assert.Zero(t, r.closed)

	c.SetLoaded(true)
	assert.True(t, c.HandleBack())
	assert.Equal(t, 1, r.closed)

	c.Dispatch(navigation.SetBackPolicy{Policy: navigation.Back})
	assert.True(t, c.HandleBack())
	assert.Equal(t, 1, r.wentBack)

	c.Dispatch(navigation.SetBackPolicy{Policy: navigation.Lock})
	assert.True(t, c.HandleBack())
	assert.Equal(t, 1, r.closed)
	assert.Equal(t, 1, r.wentBack)
}
