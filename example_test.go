package gatekeep_test

import (
	"fmt"

	"github.com/krishna-kudari/gatekeep"
)

func ExampleEngine_Check() {
	cfg := gatekeep.LimitsConfig{
		Tiers: map[string]gatekeep.TierConfig{
			"basic": {Algorithm: gatekeep.AlgoFixedWindow, MaxRequests: 2, WindowMs: 60_000},
		},
		DefaultTier: "basic",
	}
	engine, err := gatekeep.NewEngine(cfg)
	if err != nil {
		panic(err)
	}

	for i := 0; i < 3; i++ {
		d := engine.Check("203.0.113.7", "basic")
		fmt.Printf("allowed=%v remaining=%d\n", d.Allowed, d.Remaining)
	}
	// Output:
	// allowed=true remaining=1
	// allowed=true remaining=0
	// allowed=false remaining=0
}

func ExampleEngine_Check_unlimitedTier() {
	cfg := gatekeep.LimitsConfig{
		Tiers: map[string]gatekeep.TierConfig{
			"free":     {Algorithm: gatekeep.AlgoSlidingWindow, MaxRequests: 100, WindowMs: 60_000},
			"internal": {Algorithm: gatekeep.AlgoNone},
		},
		DefaultTier: "free",
	}
	engine, err := gatekeep.NewEngine(cfg)
	if err != nil {
		panic(err)
	}

	d := engine.Check("203.0.113.7", "internal")
	fmt.Printf("allowed=%v limit=%d algorithm=%s\n", d.Allowed, d.Limit, d.Algorithm)
	// Output:
	// allowed=true limit=-1 algorithm=none
}

func ExampleIPRules_Allowed() {
	rules := gatekeep.IPRules{
		Mode:      gatekeep.ModeBlocklist,
		Blocklist: []string{"198.51.100.99"},
	}

	ok, _ := rules.Allowed("203.0.113.7")
	fmt.Println(ok)
	ok, reason := rules.Allowed("198.51.100.99")
	fmt.Println(ok, reason)
	// Output:
	// true
	// false IP is blocked
}
