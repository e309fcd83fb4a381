package types

// Damping Rayleigh 阻尼设置
type Damping struct {
	Enabled bool       // 是否考虑阻尼
	Modes   [2]int     // 选取的两阶振型(从 1 开始)
	Ratios  [2]float64 // 对应的阻尼比
}

// DefaultDamping 默认 1、2 阶振型 5% 阻尼比
func DefaultDamping() Damping {
	return Damping{Enabled: true, Modes: [2]int{1, 2}, Ratios: [2]float64{0.05, 0.05}}
}

// Validate 检查阻尼设置，n 为楼层数，modeNum 为请求的振型数
func (d Damping) Validate(n, modeNum int) error {
	if !d.Enabled {
		return nil
	}
	if modeNum > MaxModes {
		modeNum = MaxModes
	}
	if modeNum > n {
		modeNum = n
	}
	// 只求一阶振型时按单自由度处理，只使用第一个振型
	count := 2
	if modeNum < 2 {
		count = 1
	}
	for k := 0; k < count; k++ {
		if d.Modes[k] < 1 || d.Modes[k] > modeNum {
			return configErrorf("damping.modes", "振型 %d 超出范围 1..%d", d.Modes[k], modeNum)
		}
		if !finite(d.Ratios[k]) || d.Ratios[k] < 0 || d.Ratios[k] > 1 {
			return configErrorf("damping.ratios", "阻尼比须在[0,1]内: %g", d.Ratios[k])
		}
	}
	if count == 2 && d.Modes[0] == d.Modes[1] {
		return configErrorf("damping.modes", "Rayleigh阻尼所选振型不能一致")
	}
	return nil
}
