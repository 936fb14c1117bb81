package session

import (
	"net/http"
	"sync/atomic"
)

// ScopeHeader 出站请求上标记生效库存拥有者的请求头。
const ScopeHeader = "X-Inventory-Owner"

// Injector 单槽位请求作用域。空表示"查看本人数据"，
// 非空表示后续所有认证请求一律作用于该拥有者。
//
// 写入方约定：只有 Manager 可以调用 Set/Clear（见 Manager 的状态同步逻辑），
// 其余组件只读。last-write-wins，每次请求发出时同步读取。
type Injector struct {
	scope atomic.Pointer[string]
}

// NewInjector 创建空作用域的 Injector。
func NewInjector() *Injector {
	return &Injector{}
}

// Set 设置作用域。传空字符串等价于 Clear。
func (i *Injector) Set(ownerID string) {
	if ownerID == "" {
		i.Clear()
		return
	}
	i.scope.Store(&ownerID)
}

// Clear 清空作用域。
func (i *Injector) Clear() {
	i.scope.Store(nil)
}

// Scope 读取当前作用域。
func (i *Injector) Scope() (string, bool) {
	p := i.scope.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// ScopedTransport 在发出请求的瞬间读取 Injector，
// 作用域非空时附加 ScopeHeader。普通调用方无需感知共享逻辑。
type ScopedTransport struct {
	Base     http.RoundTripper
	Injector *Injector
}

func (t *ScopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Injector != nil {
		if ownerID, ok := t.Injector.Scope(); ok {
			req = req.Clone(req.Context())
			req.Header.Set(ScopeHeader, ownerID)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
