package feed

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// ParseAllMids 解析 allMids 推送 {"mids":{"BTC":"65000.5",...}}
// assets 为空时返回全部资产；无法解析的价格被跳过
func ParseAllMids(data []byte, assets map[string]struct{}) (map[string]float64, error) {
	mids := gjson.GetBytes(data, "mids")
	if !mids.IsObject() {
		return nil, fmt.Errorf("allMids: missing mids object")
	}

	out := make(map[string]float64)
	mids.ForEach(func(key, value gjson.Result) bool {
		asset := key.String()
		if len(assets) > 0 {
			if _, ok := assets[asset]; !ok {
				return true
			}
		}
		price, err := cast.ToFloat64E(value.String())
		if err != nil {
			return true
		}
		out[asset] = price
		return true
	})
	return out, nil
}
