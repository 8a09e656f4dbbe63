package matching

import "strings"

// MinSubstringLength 子串匹配的最小长度阈值。
// 被包含的一侧规范化后长度低于该值时不做子串匹配，避免"go"之类的短词误命中。
const MinSubstringLength = 3

// Matches 判断候选人持有的技能标记是否满足所需技能标记。
// 两个标记规范化后满足以下任一条件即视为匹配：
//  1. 完全相等（同义词经Normalize已归一到相同规范形式）；
//  2. 一方是另一方的子串，且被包含一方长度不小于MinSubstringLength。
//
// 子串检查对required/held两个方向对称，满足交换律。
func Matches(requiredToken, heldToken string) bool {
	required := Normalize(requiredToken)
	held := Normalize(heldToken)
	if required == "" || held == "" {
		return false
	}

	if required == held {
		return true
	}

	return containsWithThreshold(required, held) || containsWithThreshold(held, required)
}

// containsWithThreshold 判断inner是否为outer的子串，且inner长度达到阈值
func containsWithThreshold(outer, inner string) bool {
	if len(inner) < MinSubstringLength {
		return false
	}
	return strings.Contains(outer, inner)
}

// MatchesNormalized 与Matches语义相同，但假定两个标记都已经过Normalize处理。
// 评分引擎对持有技能集合做过一次性预规范化后，用此函数避免重复规范化开销。
func MatchesNormalized(required, held string) bool {
	if required == "" || held == "" {
		return false
	}
	if required == held {
		return true
	}
	return containsWithThreshold(required, held) || containsWithThreshold(held, required)
}
