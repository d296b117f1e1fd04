package ioc

import (
	"fmt"
	"reflect"
)

// callFactory 用已解析的依赖调用定义的工厂。
// deps 与 def.Dependencies 一一对应，集合依赖为 []any，缺失的可选依赖为 nil。
func callFactory(def *Definition, owner any, deps []any) (any, error) {
	switch def.Factory.Kind {
	case FactoryValue:
		return def.Factory.Value, nil

	case FactoryConstructor:
		fn := reflect.ValueOf(def.Factory.Func)
		args, err := convertArgs(def, deps, fn.Type().In)
		if err != nil {
			return nil, err
		}
		return unpack(fn.Call(args))

	case FactoryProducer:
		if owner == nil {
			return nil, fmt.Errorf("producer owner %s is nil", def.Factory.Owner)
		}
		mv := reflect.ValueOf(owner).MethodByName(def.Factory.Method)
		if !mv.IsValid() {
			// 代理只暴露接口方法，生产方法在原始实例上
			mv = reflect.ValueOf(rawInstance(owner)).MethodByName(def.Factory.Method)
		}
		if !mv.IsValid() {
			return nil, fmt.Errorf("owner %T has no method %s", owner, def.Factory.Method)
		}
		args, err := convertArgs(def, deps, mv.Type().In)
		if err != nil {
			return nil, err
		}
		return unpack(mv.Call(args))

	case FactoryStruct:
		return buildStruct(def, deps)
	}
	return nil, fmt.Errorf("unknown factory kind %d", def.Factory.Kind)
}

func convertArgs(def *Definition, deps []any, param func(int) reflect.Type) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(deps))
	for i, dep := range deps {
		v, err := toValue(dep, param(i), def.Dependencies[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

// toValue 将解析结果转换为参数类型的反射值
func toValue(dep any, typ reflect.Type, req DependencyRequest) (reflect.Value, error) {
	if req.Multiplicity == Collection {
		items, _ := dep.([]any)
		out := reflect.MakeSlice(typ, 0, len(items))
		for _, item := range items {
			v := reflect.ValueOf(item)
			if !v.Type().AssignableTo(typ.Elem()) {
				return reflect.Value{}, fmt.Errorf("%T is not assignable to %v", item, typ.Elem())
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	}
	if dep == nil {
		return reflect.Zero(typ), nil
	}
	v := reflect.ValueOf(dep)
	if !v.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%T is not assignable to %v", dep, typ)
	}
	return v, nil
}

// unpack 处理 T 或 (T, error) 返回值
func unpack(results []reflect.Value) (any, error) {
	if len(results) == 2 && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	first := results[0]
	switch first.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if first.IsNil() {
			return nil, fmt.Errorf("factory returned nil instance")
		}
	}
	return first.Interface(), nil
}

func buildStruct(def *Definition, deps []any) (any, error) {
	typ := def.Factory.StructType
	isPtr := typ.Kind() == reflect.Ptr
	if isPtr {
		typ = typ.Elem()
	}
	ptr := reflect.New(typ)
	elem := ptr.Elem()
	for i, f := range def.fields {
		field := elem.Field(f.index)
		v, err := toValue(deps[i], field.Type(), def.Dependencies[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.name, err)
		}
		field.Set(v)
	}
	if isPtr {
		return ptr.Interface(), nil
	}
	return elem.Interface(), nil
}
