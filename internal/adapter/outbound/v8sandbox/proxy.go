package v8sandbox

import "strconv"

// securityViolationErrorName is the JS Error.name the secure proxy's traps
// set when a deny-listed property is accessed or assigned. jsErrorToSandboxError
// in bridge.go recognizes this name and maps the rejection to
// sandboxerr.CodeSecurityViolation rather than the generic CodeExecutionError
// every other uncaught guest exception gets.
const securityViolationErrorName = "SecurityViolationError"

// proxyFactoryScript returns the Secure Object Proxy factory (§4.4) as
// host-authored JavaScript. It is injected into the inner context before
// any user source is compiled, so the guest can observe its *effects*
// (reads and writes of deny-listed properties throwing a
// SecurityViolationError, `in`, descriptor and key enumeration hiding them,
// depth-capped wrappers going opaque) but can never reach the factory
// itself or any unwrapped target it closes over.
//
// v8go isolates do not share a heap, so a literal two-isolate object
// crossing is not representable; the factory instead plays the role the
// governing design calls the "outer isolate": every curated global is
// wrapped by makeSecureProxy before the guest's transformed source is
// compiled into the same v8.Context; see DESIGN.md, "Two-isolate design
// resolved to one Context".
func proxyFactoryScript(denyList []string, maxDepth int) string {
	deny := "["
	for i, name := range denyList {
		if i > 0 {
			deny += ","
		}
		deny += strconv.Quote(name)
	}
	deny += "]"

	return `(function(global) {
  const __ag_denyList = new Set(` + deny + `);
  const __ag_maxDepth = ` + strconv.Itoa(maxDepth) + `;
  const __ag_cache = new WeakMap();

  function __ag_securityViolation(message) {
    const e = new Error(message);
    e.name = ` + strconv.Quote(securityViolationErrorName) + `;
    throw e;
  }

  function isWrappable(v) {
    return v !== null && (typeof v === "object" || typeof v === "function");
  }

  function makeSecureProxy(target, depth) {
    if (!isWrappable(target)) return target;
    if (depth >= __ag_maxDepth) return __ag_opaque;

    const cached = __ag_cache.get(target);
    if (cached) return cached;

    const handler = {
      get(t, key, receiver) {
        const k = String(key);
        if (__ag_denyList.has(k)) __ag_securityViolation("access to \"" + k + "\" is blocked by the secure proxy");
        const v = Reflect.get(t, key, t);
        if (typeof v === "function") {
          const bound = v.bind(t);
          return function(...args) {
            const result = bound(...args);
            return makeSecureProxy(result, depth + 1);
          };
        }
        return makeSecureProxy(v, depth + 1);
      },
      set(t, key, value) {
        const k = String(key);
        if (__ag_denyList.has(k)) __ag_securityViolation("assignment to \"" + k + "\" is blocked by the secure proxy");
        return Reflect.set(t, key, value);
      },
      has(t, key) {
        const k = String(key);
        if (__ag_denyList.has(k)) return false;
        return Reflect.has(t, key);
      },
      deleteProperty(t, key) {
        const k = String(key);
        if (__ag_denyList.has(k)) return false;
        return Reflect.deleteProperty(t, key);
      },
      ownKeys(t) {
        return Reflect.ownKeys(t).filter((k) => !__ag_denyList.has(String(k)));
      },
      getOwnPropertyDescriptor(t, key) {
        const k = String(key);
        if (__ag_denyList.has(k)) return undefined;
        const desc = Reflect.getOwnPropertyDescriptor(t, key);
        if (desc) desc.enumerable = desc.enumerable ?? true;
        return desc;
      },
      getPrototypeOf() {
        return null;
      },
      setPrototypeOf() {
        return false;
      },
      isExtensible() {
        return false;
      },
      preventExtensions() {
        return true;
      },
      apply(t, thisArg, args) {
        const result = Reflect.apply(t, thisArg, args);
        return makeSecureProxy(result, depth + 1);
      },
      construct() {
        throw new TypeError("construction through a secure proxy is not permitted");
      },
    };

    const proxy = new Proxy(target, handler);
    __ag_cache.set(target, proxy);
    return proxy;
  }

  const __ag_opaque = new Proxy(Object.freeze({}), {
    get() { return undefined; },
    set() { return true; },
    has() { return false; },
    ownKeys() { return []; },
    getOwnPropertyDescriptor() { return undefined; },
  });

  global.__ag_makeSecureProxy = makeSecureProxy;
})(globalThis);
`
}
