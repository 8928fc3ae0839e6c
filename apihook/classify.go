package apihook

// Bucket 是单个位置（query/header/body）的分类结果。
type Bucket struct {
	// Keys 按声明顺序记录该位置的参数名。
	Keys []string
	// Required 仅包含 Required=true 且没有默认值的参数。
	Required []string
	// Defaults 为 key -> 默认值，重复声明时后者覆盖前者。
	Defaults map[string]any
}

// Has 判断 key 是否声明在该位置。
func (b Bucket) Has(key string) bool {
	for _, k := range b.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Classification 是配置生命周期内只计算一次的参数分区。
type Classification struct {
	PathKeys []string
	Query    Bucket
	Header   Bucket
	Body     Bucket
}

// Classify 按 In 字段把声明划分到 query/header/body，并计算必填子集与默认值。
// 不检测重复 key，也不检测与路径占位符重名的声明。
func Classify(params []Parameter, pathKeys []string) Classification {
	c := Classification{
		PathKeys: append([]string(nil), pathKeys...),
		Query:    newBucket(),
		Header:   newBucket(),
		Body:     newBucket(),
	}
	for _, p := range params {
		bucket := c.bucket(p.In)
		if bucket == nil {
			continue
		}
		bucket.Keys = append(bucket.Keys, p.Key)
		if p.Default != nil {
			bucket.Defaults[p.Key] = p.Default
		} else if p.Required {
			bucket.Required = append(bucket.Required, p.Key)
		}
	}
	return c
}

func newBucket() Bucket {
	return Bucket{Defaults: map[string]any{}}
}

func (c *Classification) bucket(loc Location) *Bucket {
	switch loc {
	case LocationQuery:
		return &c.Query
	case LocationHeader:
		return &c.Header
	case LocationBody:
		return &c.Body
	default:
		return nil
	}
}
