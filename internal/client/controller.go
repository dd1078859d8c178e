package client

import "config-client/internal/property"

// MessagePrefix 是 /client/config 响应正文的固定前缀。
const MessagePrefix = "A propriedade configurada é: "

// Controller 持有启动时解析好的属性，并生成接口响应。
// 构造后不再修改，可被任意数量的请求并发读取。
type Controller struct {
	prop    property.ConfiguredProperty
	message string
}

// NewController 使用已解析的属性构造控制器。
func NewController(prop property.ConfiguredProperty) *Controller {
	return &Controller{prop: prop, message: MessagePrefix + prop.Value}
}

// GetConfig 返回响应正文：前缀加上属性值。
func (c *Controller) GetConfig() string {
	return c.message
}

// Property 返回控制器持有的属性。
func (c *Controller) Property() property.ConfiguredProperty {
	return c.prop
}
