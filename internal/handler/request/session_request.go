package request

import "deposit-core/internal/model"

// ConnectRequest 钱包连接后返回的地址列表, 原样写入本地存储
type ConnectRequest struct {
	Addresses []model.AddressEntry `json:"addresses" binding:"required,min=1,dive"`
}
