package session

// Known segment tags assigned by the analytics engine.
const (
	SegmentHighValueTraders  = "high_value_traders"
	SegmentActiveTraders     = "active_stock_traders"
	SegmentNewUsers          = "new_stock_app_users"
	SegmentAtRiskUsers       = "at_risk_stock_users"
	SegmentWindowShoppers    = "window_shoppers"
	SegmentReturningVisitors = "returning_stock_visitors"
	SegmentRegisteredUsers   = "registered_stock_users"
	SegmentMobileUsers       = "mobile_stock_users"
)

// Flags is a read-only view over a visitor's segment set: each flag is
// true exactly when the corresponding tag is present. Tags outside the
// known mapping are carried in Segments but never affect the flags.
type Flags struct {
	Segments           []string `json:"segments"`
	IsHighValueTrader  bool     `json:"isHighValueTrader"`
	IsActiveTrader     bool     `json:"isActiveTrader"`
	IsNewUser          bool     `json:"isNewUser"`
	IsAtRisk           bool     `json:"isAtRisk"`
	IsWindowShopper    bool     `json:"isWindowShopper"`
	IsReturningVisitor bool     `json:"isReturningVisitor"`
	IsRegistered       bool     `json:"isRegistered"`
	IsMobileUser       bool     `json:"isMobileUser"`
}

// FlagsFromSegments derives the flag view from a segment set.
func FlagsFromSegments(segments []string) Flags {
	has := make(map[string]bool, len(segments))
	for _, s := range segments {
		has[s] = true
	}
	if segments == nil {
		segments = []string{}
	}
	return Flags{
		Segments:           segments,
		IsHighValueTrader:  has[SegmentHighValueTraders],
		IsActiveTrader:     has[SegmentActiveTraders],
		IsNewUser:          has[SegmentNewUsers],
		IsAtRisk:           has[SegmentAtRiskUsers],
		IsWindowShopper:    has[SegmentWindowShoppers],
		IsReturningVisitor: has[SegmentReturningVisitors],
		IsRegistered:       has[SegmentRegisteredUsers],
		IsMobileUser:       has[SegmentMobileUsers],
	}
}

// BannerVariant is the closed set of personalized banner treatments.
// Exactly one wins per visitor, chosen by precedence.
type BannerVariant string

const (
	BannerNone            BannerVariant = "none"
	BannerHighValueTrader BannerVariant = "high_value_trader"
	BannerNewUser         BannerVariant = "new_user"
	BannerAtRisk          BannerVariant = "at_risk"
	BannerWindowShopper   BannerVariant = "window_shopper"
)

// Banner selects the winning banner variant for this flag set.
// Precedence: high-value trader, then new user, then at-risk, then
// window shopper.
func (f Flags) Banner() BannerVariant {
	switch {
	case f.IsHighValueTrader:
		return BannerHighValueTrader
	case f.IsNewUser:
		return BannerNewUser
	case f.IsAtRisk:
		return BannerAtRisk
	case f.IsWindowShopper:
		return BannerWindowShopper
	default:
		return BannerNone
	}
}
