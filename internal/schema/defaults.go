package schema

import "github.com/solatis/waveplanner/internal/types"

// defaultFields is the order field catalogue offered by the rule builder.
var defaultFields = []FieldDescriptor{
	// Direct order attributes
	{Name: "Client", ValueType: types.ValueTypeString, Attribute: AttributeClient},
	{Name: "Priority", ValueType: types.ValueTypeEnum, Attribute: AttributePriority, EnumValues: []string{"P1", "P2", "P3"}},
	{Name: "SKU", ValueType: types.ValueTypeString, Attribute: AttributeSKU},
	{Name: "Item quantity", ValueType: types.ValueTypeNumber, Attribute: AttributeQuantity},
	{Name: "Order date", ValueType: types.ValueTypeDate, Attribute: AttributeDate},
	{Name: "Order sales channel", ValueType: types.ValueTypeEnum, Attribute: AttributeChannel},
	{Name: "Order status", ValueType: types.ValueTypeString, Attribute: AttributeStatus},
	{Name: "Order lines", ValueType: types.ValueTypeNumber, Attribute: AttributeLines},
	{Name: "Order volume", ValueType: types.ValueTypeNumber, Attribute: AttributeVolume},

	// Attribute fields read from dynamic attributes
	{Name: "Carrier option", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "carrier_option"},
	{Name: "Delivery method", ValueType: types.ValueTypeEnum, Attribute: AttributeDynamic, DynamicKey: "delivery_method"},
	{Name: "Delivery Promise", ValueType: types.ValueTypeDate, Attribute: AttributeDynamic, DynamicKey: "delivery_promise"},
	{Name: "Destination country", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "destination_country"},
	{Name: "Destination state", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "destination_state"},
	{Name: "Destination zipcode", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "destination_zipcode"},
	{Name: "Item unit price", ValueType: types.ValueTypeNumber, Attribute: AttributeDynamic, DynamicKey: "item_unit_price"},
	{Name: "Items price", ValueType: types.ValueTypeNumber, Attribute: AttributeDynamic, DynamicKey: "items_price"},
	{Name: "Order delivery type", ValueType: types.ValueTypeEnum, Attribute: AttributeDynamic, DynamicKey: "order_delivery_type"},
	{Name: "Order original price", ValueType: types.ValueTypeNumber, Attribute: AttributeDynamic, DynamicKey: "order_original_price"},
	{Name: "Order price", ValueType: types.ValueTypeNumber, Attribute: AttributeDynamic, DynamicKey: "order_price"},
	{Name: "Order type", ValueType: types.ValueTypeEnum, Attribute: AttributeDynamic, DynamicKey: "order_type"},
	{Name: "Origin country", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "origin_country"},
	{Name: "Origin state", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "origin_state"},
	{Name: "Origin zipcode", ValueType: types.ValueTypeString, Attribute: AttributeDynamic, DynamicKey: "origin_zipcode"},

	// Information fields: free-text sub-key plus declared sub-type
	{Name: "Carrier information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
	{Name: "Customer information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
	{Name: "Destination information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
	{Name: "Item information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
	{Name: "Order information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
	{Name: "Origin information", AllowsDynamicSubKey: true, Attribute: AttributeDynamic},
}

var defaultRegistry = mustRegistry(defaultFields...)

// Default returns the built-in order field registry.
func Default() *Registry {
	return defaultRegistry
}

func mustRegistry(descs ...FieldDescriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}
