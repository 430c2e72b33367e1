package models

import (
	"errors"
	"fmt"
	"time"
)

// FeatureFlag names one of the known per-user boolean flags.
type FeatureFlag string

const (
	FlagUseGrok           FeatureFlag = "use_grok"
	FlagUseGeminiPro      FeatureFlag = "use_gemini_pro"
	FlagSmartRouting      FeatureFlag = "smart_routing"
	FlagEnhancedAnalytics FeatureFlag = "enhanced_analytics"
	FlagNewsWidget        FeatureFlag = "news_widget"
	FlagCostTracking      FeatureFlag = "cost_tracking"
)

var AllFeatureFlags = []FeatureFlag{
	FlagUseGrok,
	FlagUseGeminiPro,
	FlagSmartRouting,
	FlagEnhancedAnalytics,
	FlagNewsWidget,
	FlagCostTracking,
}

func ParseFeatureFlag(s string) (FeatureFlag, error) {
	for _, f := range AllFeatureFlags {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature flag %q", s)
}

// ABGroup is the experiment cohort a user belongs to.
type ABGroup string

const (
	GroupControl ABGroup = "control"
	GroupGrok    ABGroup = "grok"
	GroupGemini  ABGroup = "gemini"
	GroupSmart   ABGroup = "smart"
)

var AllABGroups = []ABGroup{GroupControl, GroupGrok, GroupGemini, GroupSmart}

func (g ABGroup) Valid() bool {
	switch g {
	case GroupControl, GroupGrok, GroupGemini, GroupSmart:
		return true
	}
	return false
}

func ParseABGroup(s string) (ABGroup, error) {
	g := ABGroup(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown ab test group %q", s)
	}
	return g, nil
}

// Flags is the typed form of the flags JSON blob. The zero value is the
// default for a new user.
type Flags struct {
	UseGrok           bool `json:"use_grok"`
	UseGeminiPro      bool `json:"use_gemini_pro"`
	SmartRouting      bool `json:"smart_routing"`
	EnhancedAnalytics bool `json:"enhanced_analytics"`
	NewsWidget        bool `json:"news_widget"`
	CostTracking      bool `json:"cost_tracking"`
}

// Get reports the value of a single flag.
func (f Flags) Get(flag FeatureFlag) bool {
	switch flag {
	case FlagUseGrok:
		return f.UseGrok
	case FlagUseGeminiPro:
		return f.UseGeminiPro
	case FlagSmartRouting:
		return f.SmartRouting
	case FlagEnhancedAnalytics:
		return f.EnhancedAnalytics
	case FlagNewsWidget:
		return f.NewsWidget
	case FlagCostTracking:
		return f.CostTracking
	}
	return false
}

// Set assigns a single flag.
func (f *Flags) Set(flag FeatureFlag, v bool) {
	switch flag {
	case FlagUseGrok:
		f.UseGrok = v
	case FlagUseGeminiPro:
		f.UseGeminiPro = v
	case FlagSmartRouting:
		f.SmartRouting = v
	case FlagEnhancedAnalytics:
		f.EnhancedAnalytics = v
	case FlagNewsWidget:
		f.NewsWidget = v
	case FlagCostTracking:
		f.CostTracking = v
	}
}

// FlagsPatch is a partial update; nil fields are left untouched.
type FlagsPatch struct {
	UseGrok           *bool `json:"use_grok,omitempty"`
	UseGeminiPro      *bool `json:"use_gemini_pro,omitempty"`
	SmartRouting      *bool `json:"smart_routing,omitempty"`
	EnhancedAnalytics *bool `json:"enhanced_analytics,omitempty"`
	NewsWidget        *bool `json:"news_widget,omitempty"`
	CostTracking      *bool `json:"cost_tracking,omitempty"`
}

// Apply shallow-merges the patch into f.
func (p FlagsPatch) Apply(f *Flags) {
	if p.UseGrok != nil {
		f.UseGrok = *p.UseGrok
	}
	if p.UseGeminiPro != nil {
		f.UseGeminiPro = *p.UseGeminiPro
	}
	if p.SmartRouting != nil {
		f.SmartRouting = *p.SmartRouting
	}
	if p.EnhancedAnalytics != nil {
		f.EnhancedAnalytics = *p.EnhancedAnalytics
	}
	if p.NewsWidget != nil {
		f.NewsWidget = *p.NewsWidget
	}
	if p.CostTracking != nil {
		f.CostTracking = *p.CostTracking
	}
}

// ErrMalformedFlags marks a stored flags row that cannot be decoded.
var ErrMalformedFlags = errors.New("malformed feature flags")

type UserFeatureFlags struct {
	UserID      string    `json:"user_id"`
	Flags       Flags     `json:"flags"`
	ABTestGroup ABGroup   `json:"ab_test_group"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultUserFeatureFlags returns the all-false control row for a user.
func DefaultUserFeatureFlags(userID string) *UserFeatureFlags {
	return &UserFeatureFlags{
		UserID:      userID,
		ABTestGroup: GroupControl,
	}
}

type UpdateFlagsRequest struct {
	Flags       FlagsPatch `json:"flags"`
	ABTestGroup *ABGroup   `json:"ab_test_group,omitempty"`
}

type AssignGroupRequest struct {
	Group ABGroup `json:"group" binding:"required"`
}
