// 文件: pkg/liquid/ranker.go
// 流动性排序
//
// 规则: 成交量降序，同量按 contract_id 升序
// 两个合约都是 0 成交 (比如安静的夜盘) 时也能得到确定结果

package liquid

import "sort"

// Rank 返回排名第一的合约；空映射返回 ErrNoCandidate
// 纯函数，不修改入参
func Rank(volumes []ContractVolume) (ContractVolume, error) {
	if len(volumes) == 0 {
		return ContractVolume{}, ErrNoCandidate
	}
	best := volumes[0]
	for _, v := range volumes[1:] {
		if better(v, best) {
			best = v
		}
	}
	return best, nil
}

// Ranked 完整排序结果 (用于日志/诊断)，返回新切片
func Ranked(volumes []ContractVolume) []ContractVolume {
	out := make([]ContractVolume, len(volumes))
	copy(out, volumes)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

func better(a, b ContractVolume) bool {
	if a.Volume != b.Volume {
		return a.Volume > b.Volume
	}
	return a.ContractID < b.ContractID
}
